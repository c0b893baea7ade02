package tasks

import (
	"context"

	"github.com/edgard/calendarbot/internal/config"
)

// ScheduledTaskFunc is the signature of every scheduled task. The context
// is cancelled on shutdown.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the task functions keyed by the names used in
// the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		config.TaskInboxScan:      newInboxScanTask(deps),
		config.TaskReminders:      newRemindersTask(deps),
		config.TaskSQLMaintenance: newSQLMaintenanceTask(deps),
	}
	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
