package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/calendarbot/internal/event"
)

const maxListedEvents = 10

// NewEventsHandler returns a handler for /events, which lists the next
// upcoming events that were not dismissed.
func NewEventsHandler(deps HandlerDeps) bot.HandlerFunc {
	h := eventsHandler{deps: deps, now: time.Now}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) { h.handle(ctx, b, update) }
}

type eventsHandler struct {
	deps HandlerDeps
	now  func() time.Time
}

func (h eventsHandler) handle(ctx context.Context, s sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "events")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	upcoming, err := Upcoming(ctx, h.deps.Events, h.deps.Dismissed, h.now(), maxListedEvents)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list events", "error", err)
		reply(ctx, s, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if len(upcoming) == 0 {
		reply(ctx, s, log, chatID, h.deps.Config.Messages.NoEvents)
		return
	}

	var sb strings.Builder
	sb.WriteString(h.deps.Config.Messages.EventsHeader)
	sb.WriteString("\n")
	for _, ev := range upcoming {
		fmt.Fprintf(&sb, "\n• %s  %s", ev.Start.UTC().Format("2006-01-02 15:04"), ev.Title)
		if ev.Location != "" {
			fmt.Fprintf(&sb, " (%s)", ev.Location)
		}
		if ev.ExternalLink != "" {
			fmt.Fprintf(&sb, "\n  %s", ev.ExternalLink)
		}
	}
	reply(ctx, s, log, chatID, sb.String())
}

// Upcoming returns up to limit events starting at or after now, excluding
// dismissed ones, sorted by start.
func Upcoming(ctx context.Context, events EventSource, dismissed ChatLedger, now time.Time, limit int) ([]event.CalendarEvent, error) {
	all, err := events.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	skip, err := dismissed.Set()
	if err != nil {
		return nil, fmt.Errorf("failed to load dismissed events: %w", err)
	}

	var out []event.CalendarEvent
	for _, ev := range all {
		if ev.Start.Before(now) {
			continue
		}
		if _, ok := skip[ev.ID()]; ok {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
