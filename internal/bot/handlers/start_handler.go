package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	h := staticHandler{deps: deps, name: "start", text: deps.Config.Messages.Welcome}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) { h.handle(ctx, b, update) }
}

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	h := staticHandler{deps: deps, name: "help", text: deps.Config.Messages.Help}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) { h.handle(ctx, b, update) }
}

// staticHandler answers a command with a fixed text. "@botname" is
// replaced with the bot's username when known.
type staticHandler struct {
	deps HandlerDeps
	name string
	text string
}

func (h staticHandler) handle(ctx context.Context, s sender, update *models.Update) {
	log := h.deps.Logger.With("handler", h.name)
	if update.Message == nil {
		log.WarnContext(ctx, "Command handler received update without message", "update_id", update.ID)
		return
	}
	log.InfoContext(ctx, "Handling command", "chat_id", update.Message.Chat.ID)

	text := h.text
	if info := h.deps.Config.Telegram.BotInfo; info != nil && info.Username != "" {
		text = strings.ReplaceAll(text, "@botname", "@"+info.Username)
	}
	reply(ctx, s, log, update.Message.Chat.ID, text)
}
