package handlers

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewSubscribeHandler returns a handler for /subscribe, which adds the
// chat to the reminder recipients.
func NewSubscribeHandler(deps HandlerDeps) bot.HandlerFunc {
	h := subscriptionHandler{deps: deps, subscribe: true}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) { h.handle(ctx, b, update) }
}

// NewUnsubscribeHandler returns a handler for /unsubscribe.
func NewUnsubscribeHandler(deps HandlerDeps) bot.HandlerFunc {
	h := subscriptionHandler{deps: deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) { h.handle(ctx, b, update) }
}

type subscriptionHandler struct {
	deps      HandlerDeps
	subscribe bool
}

func (h subscriptionHandler) handle(ctx context.Context, s sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "subscription", "subscribe", h.subscribe)
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	key := strconv.FormatInt(chatID, 10)

	var err error
	text := h.deps.Config.Messages.Subscribed
	if h.subscribe {
		err = h.deps.Subscribers.Add(key)
	} else {
		err = h.deps.Subscribers.Remove(key)
		text = h.deps.Config.Messages.Unsubscribed
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to update subscribers", "error", err, "chat_id", chatID)
		reply(ctx, s, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Updated reminder subscription", "chat_id", chatID)
	reply(ctx, s, log, chatID, text)
}
