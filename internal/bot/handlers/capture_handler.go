package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/calendarbot/internal/database"
)

const enqueueTimeout = 5 * time.Second

// NewCaptureHandler returns the default handler. It queues every message
// from a watched group that carries text, a caption, a document or a photo
// into the inbox for event extraction.
func NewCaptureHandler(deps HandlerDeps) bot.HandlerFunc {
	return WatchedGroupsOnly(deps)(captureHandler{deps}.Handle)
}

type captureHandler struct {
	deps HandlerDeps
}

func (h captureHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "capture")

	row := InboxRow(update.Message)
	if row == nil {
		log.DebugContext(ctx, "Ignoring message without extractable content", "update_id", update.ID)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	inserted, err := h.deps.Inbox.EnqueueMessage(ctx, row)
	if err != nil {
		log.ErrorContext(ctx, "Failed to queue message", "error", err, "chat_id", row.ChatID, "message_id", row.MessageID)
		return
	}
	if inserted {
		log.InfoContext(ctx, "Queued message for extraction",
			"chat_id", row.ChatID, "message_id", row.MessageID, "has_file", row.FileID != "")
	}
}

// InboxRow converts a Telegram message to an inbox row, or nil when the
// message has nothing to extract from.
func InboxRow(msg *models.Message) *database.InboxMessage {
	if msg == nil {
		return nil
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	row := &database.InboxMessage{
		ChatID:       msg.Chat.ID,
		ChatTitle:    msg.Chat.Title,
		ChatUsername: msg.Chat.Username,
		MessageID:    int64(msg.ID),
		Text:         text,
		MessageDate:  time.Unix(int64(msg.Date), 0).UTC(),
	}

	switch {
	case msg.Document != nil:
		row.FileID = msg.Document.FileID
		row.FileName = msg.Document.FileName
	case len(msg.Photo) > 0:
		// Sizes are ordered smallest first.
		row.FileID = msg.Photo[len(msg.Photo)-1].FileID
		row.FileName = "photo.jpg"
	}

	if strings.TrimSpace(row.Text) == "" && row.FileID == "" {
		return nil
	}
	return row
}
