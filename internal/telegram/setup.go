// Package telegram builds the go-telegram client and the Telegram-facing
// adapters used by the rest of calendarbot: reminder delivery, attachment
// download, login code delivery and message deep links.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/calendarbot/internal/bot/handlers"
)

// MessageSender is the part of *bot.Bot used to post messages.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// NewTelegramBot creates a go-telegram client. The token is never logged.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, errors.New("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		logger.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.With("component", "telegram_bot").Info("Telegram bot instance created")
	return b, nil
}

// applyMiddleware wraps handler so that the first middleware is outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// HandlerRegistrar is the part of *bot.Bot used to register handlers.
type HandlerRegistrar interface {
	RegisterHandler(handlerType bot.HandlerType, pattern string, matchType bot.MatchType, f bot.HandlerFunc, m ...bot.Middleware) string
}

// RegisterHandlers registers each command with its own middleware chain.
// The catch-all message capture is installed through bot.WithDefaultHandler
// instead.
func RegisterHandlers(b HandlerRegistrar, logger *slog.Logger, registered map[string]handlers.RegisteredHandler) error {
	if b == nil {
		return errors.New("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	count := 0
	for name, rh := range registered {
		if rh.Handler == nil {
			log.Warn("Skipping nil handler", "command", name)
			continue
		}
		b.RegisterHandler(rh.HandlerType, rh.Pattern, rh.MatchType, applyMiddleware(rh.Handler, rh.Middleware))
		log.Debug("Registered handler", "command", name, "match_type", rh.MatchType, "middleware_count", len(rh.Middleware))
		count++
	}

	log.Info("Registered Telegram handlers", "count", count)
	return nil
}
