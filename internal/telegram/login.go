package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
)

// ChatResolver maps a public @username to its chat ID.
type ChatResolver func(ctx context.Context, username string) (int64, error)

// ResolveWith resolves usernames through getChat.
func ResolveWith(b *bot.Bot) ChatResolver {
	return func(ctx context.Context, username string) (int64, error) {
		chat, err := b.GetChat(ctx, &bot.GetChatParams{ChatID: "@" + strings.TrimPrefix(username, "@")})
		if err != nil {
			return 0, err
		}
		return chat.ID, nil
	}
}

// CodeSender delivers web login codes as private messages.
type CodeSender struct {
	sender   MessageSender
	resolve  ChatResolver
	template string
}

// NewCodeSender creates a CodeSender. template holds one %s for the code.
func NewCodeSender(sender MessageSender, resolve ChatResolver, template string) *CodeSender {
	return &CodeSender{sender: sender, resolve: resolve, template: template}
}

// SendCode messages code to username. The user must have started a chat
// with the bot beforehand.
func (c *CodeSender) SendCode(ctx context.Context, username, code string) error {
	chatID, err := c.resolve(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to resolve @%s: %w", username, err)
	}
	_, err = c.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf(c.template, code),
	})
	if err != nil {
		return fmt.Errorf("failed to send login code: %w", err)
	}
	return nil
}
