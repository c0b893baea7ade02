package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/database"
	"github.com/edgard/calendarbot/internal/event"
)

// EventSource loads the stored events.
type EventSource interface {
	Load(ctx context.Context) ([]event.CalendarEvent, error)
}

// ChatLedger is a persisted set of chat IDs or event IDs.
type ChatLedger interface {
	Add(key string) error
	Remove(key string) error
	Set() (map[string]struct{}, error)
}

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger      *slog.Logger
	Config      *config.Config
	Inbox       database.Store
	Events      EventSource
	Subscribers ChatLedger
	Dismissed   ChatLedger
}

// sender is the part of *bot.Bot handlers reply through.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

func reply(ctx context.Context, s sender, log *slog.Logger, chatID int64, text string) {
	if _, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}
