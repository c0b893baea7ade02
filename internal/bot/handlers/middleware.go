// Package handlers contains the Telegram command handlers, the group
// message capture and their middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// WatchedGroupsOnly drops updates that are not group or supergroup
// messages from a configured chat.
func WatchedGroupsOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			msg := update.Message
			if msg == nil {
				return
			}
			if msg.Chat.Type != models.ChatTypeGroup && msg.Chat.Type != models.ChatTypeSupergroup {
				return
			}
			if !deps.Config.WatchesChat(msg.Chat.ID, msg.Chat.Username) {
				deps.Logger.DebugContext(ctx, "Ignoring message from unwatched chat",
					"middleware", "WatchedGroupsOnly", "chat_id", msg.Chat.ID, "chat_title", msg.Chat.Title)
				return
			}
			next(ctx, b, update)
		}
	}
}
