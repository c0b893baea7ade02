// Package tasks implements the scheduled jobs of calendarbot: draining
// the message inbox, sending reminders and database maintenance.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/database"
	"github.com/edgard/calendarbot/internal/event"
	"github.com/edgard/calendarbot/internal/pipeline"
	"github.com/edgard/calendarbot/internal/reminder"
)

// MessageProcessor extracts and stores the events of one message.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg pipeline.Message) ([]event.CalendarEvent, error)
}

// AttachmentFetcher downloads a Telegram file to a local path.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, fileID, name string) (path string, cleanup func(), err error)
}

// ReminderRunner runs one reminder cycle.
type ReminderRunner interface {
	RunCycle(ctx context.Context, now time.Time) (reminder.Result, error)
}

// TaskDeps contains the dependencies of the scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Inbox     database.Store
	Pipeline  MessageProcessor
	Fetcher   AttachmentFetcher
	Reminders ReminderRunner
}
