package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/calendarbot/internal/database"
	"github.com/edgard/calendarbot/internal/pipeline"
	"github.com/edgard/calendarbot/internal/telegram"
)

// progressEvery is how many messages are handled between progress logs
// and throttling pauses.
const progressEvery = 10

// newInboxScanTask drains a batch of captured messages through the
// extraction pipeline. A row is marked processed only after the pipeline
// accepted it, so a persistence failure leaves it queued for the next run.
func newInboxScanTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "inbox_scan")

	return func(ctx context.Context) error {
		rows, err := deps.Inbox.GetPendingMessages(ctx, deps.Config.Scan.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch pending messages: %w", err)
		}
		if len(rows) == 0 {
			log.DebugContext(ctx, "Inbox is empty")
			return nil
		}
		log.InfoContext(ctx, "Scanning inbox", "pending", len(rows))

		found := 0
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}

			events, err := processRow(ctx, deps, row)
			if err != nil {
				log.ErrorContext(ctx, "Failed to process message, stopping scan",
					"chat_id", row.ChatID, "message_id", row.MessageID, "error", err)
				return err
			}
			found += events

			if err := deps.Inbox.MarkInboxProcessed(ctx, []int64{row.ID}); err != nil {
				return fmt.Errorf("failed to mark inbox message: %w", err)
			}

			if n := i + 1; n%progressEvery == 0 && n < len(rows) {
				log.InfoContext(ctx, "Scan progress", "processed", n, "total", len(rows), "events", found)
				if err := sleep(ctx, deps.Config.Scan.MessageDelay); err != nil {
					return err
				}
			}
		}

		log.InfoContext(ctx, "Inbox scan finished", "processed", len(rows), "events", found)
		return nil
	}
}

func processRow(ctx context.Context, deps TaskDeps, row *database.InboxMessage) (int, error) {
	msg := pipeline.Message{
		ChatID:       row.ChatID,
		ChatTitle:    row.ChatTitle,
		ChatUsername: row.ChatUsername,
		MessageID:    row.MessageID,
		Text:         row.Text,
		Date:         row.MessageDate,
		Link:         telegram.MessageLink(row.ChatID, row.ChatUsername, row.MessageID),
	}

	if row.FileID != "" && deps.Fetcher != nil {
		path, cleanup, err := deps.Fetcher.Fetch(ctx, row.FileID, row.FileName)
		if err != nil {
			// The text part is still worth extracting.
			deps.Logger.WarnContext(ctx, "Attachment download failed",
				"chat_id", row.ChatID, "message_id", row.MessageID, "error", err)
		} else {
			defer cleanup()
			msg.AttachmentPath = path
		}
	}

	events, err := deps.Pipeline.ProcessMessage(ctx, msg)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
