package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSQLMaintenanceTask purges inbox rows processed longer ago than the
// scan retention and then vacuums the database.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		startTime := time.Now()

		cutoff := startTime.Add(-deps.Config.Scan.Retention)
		purged, err := deps.Inbox.PurgeProcessedBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Inbox purge failed", "error", err)
			return fmt.Errorf("inbox purge failed: %w", err)
		}

		if err := deps.Inbox.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "SQL maintenance completed", "purged", purged, "duration", time.Since(startTime))
		return nil
	}
}
