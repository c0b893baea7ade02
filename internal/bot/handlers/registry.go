package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler describes one command handler and its middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands returns the bot commands keyed by their slash name.
// Message capture is not a command; see NewCaptureHandler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	command := func(pattern string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) RegisteredHandler {
		return RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     h,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  mw,
		}
	}

	return map[string]RegisteredHandler{
		"/start":       command("start", NewStartHandler(deps)),
		"/help":        command("help", NewHelpHandler(deps)),
		"/subscribe":   command("subscribe", NewSubscribeHandler(deps)),
		"/unsubscribe": command("unsubscribe", NewUnsubscribeHandler(deps)),
		"/events":      command("events", NewEventsHandler(deps)),
	}
}
