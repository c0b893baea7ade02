package tasks

import (
	"context"
	"fmt"
	"time"
)

func newRemindersTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "reminders")

	return func(ctx context.Context) error {
		res, err := deps.Reminders.RunCycle(ctx, time.Now().UTC())
		if err != nil {
			log.ErrorContext(ctx, "Reminder cycle failed", "error", err)
			return fmt.Errorf("reminder cycle failed: %w", err)
		}
		if res.Failed > 0 {
			log.WarnContext(ctx, "Some reminders were not delivered", "failed", res.Failed)
		}
		return nil
	}
}
