package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"

	"github.com/edgard/calendarbot/internal/reminder"
)

// Subscribers lists the chat IDs that receive reminders.
type Subscribers interface {
	Members() ([]string, error)
}

// Notifier delivers reminders to every subscribed chat.
type Notifier struct {
	sender      MessageSender
	subscribers Subscribers
	log         *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(sender MessageSender, subscribers Subscribers, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:      sender,
		subscribers: subscribers,
		log:         logger.With("component", "notifier"),
	}
}

// Notify sends text to each subscriber. It succeeds when at least one chat
// received it and returns reminder.ErrNoSubscribers when nobody is
// subscribed.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	members, err := n.subscribers.Members()
	if err != nil {
		return fmt.Errorf("failed to load subscribers: %w", err)
	}
	if len(members) == 0 {
		n.log.WarnContext(ctx, "No subscribed chats for reminder")
		return reminder.ErrNoSubscribers
	}

	var errs []error
	delivered := 0
	for _, m := range members {
		chatID, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			n.log.WarnContext(ctx, "Ignoring malformed subscriber", "chat_id", m)
			continue
		}
		if _, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
			n.log.ErrorContext(ctx, "Failed to send reminder", "chat_id", chatID, "error", err)
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		if len(errs) == 0 {
			return reminder.ErrNoSubscribers
		}
		return errors.Join(errs...)
	}
	return nil
}
