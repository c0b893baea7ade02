// Package reminder sends at-most-once notifications for events starting
// roughly lead days from now.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/calendarbot/internal/event"
	"github.com/edgard/calendarbot/internal/metrics"
)

// Window is the half width of the selection window around the target time.
const Window = 12 * time.Hour

// ErrNoSubscribers is returned by notifiers with nobody to notify. The
// reminder is not recorded as sent and will be tried again.
var ErrNoSubscribers = errors.New("no subscribed chats")

// Notifier delivers a rendered reminder.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// EventSource loads the stored events.
type EventSource interface {
	Load(ctx context.Context) ([]event.CalendarEvent, error)
}

// SentLedger records reminders already dispatched.
type SentLedger interface {
	Set() (map[string]struct{}, error)
	AddAll(keys []string) error
}

// Result summarizes one cycle.
type Result struct {
	Due    int
	Sent   int
	Failed int
}

// Reminder runs reminder cycles.
type Reminder struct {
	events   EventSource
	sent     SentLedger
	notifier Notifier
	leadDays int
	template string
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a Reminder.
func New(events EventSource, sent SentLedger, notifier Notifier, leadDays int, template string, logger *slog.Logger, m *metrics.Metrics) *Reminder {
	return &Reminder{
		events:   events,
		sent:     sent,
		notifier: notifier,
		leadDays: leadDays,
		template: template,
		log:      logger.With("component", "reminder"),
		metrics:  m,
	}
}

// RunCycle selects the events due at now and notifies each one not yet in
// the sent ledger. Newly sent keys are persisted once, after the sweep.
func (r *Reminder) RunCycle(ctx context.Context, now time.Time) (Result, error) {
	var res Result

	events, err := r.events.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load events: %w", err)
	}
	sent, err := r.sent.Set()
	if err != nil {
		return res, fmt.Errorf("failed to load sent reminders: %w", err)
	}

	due := Due(events, now, r.leadDays)
	res.Due = len(due)

	var newlySent []string
	for _, ev := range due {
		key := ev.ReminderKey()
		if _, done := sent[key]; done {
			continue
		}
		// Guards against two stored events sharing a reminder key.
		sent[key] = struct{}{}

		err := r.notifier.Notify(ctx, Render(r.template, ev, r.leadDays))
		r.metrics.Reminder(err)
		if err != nil {
			delete(sent, key)
			res.Failed++
			r.log.ErrorContext(ctx, "Failed to send reminder", "title", ev.Title, "start", ev.Start, "error", err)
			continue
		}
		newlySent = append(newlySent, key)
		r.log.InfoContext(ctx, "Sent reminder", "title", ev.Title, "start", ev.Start)
	}

	if len(newlySent) > 0 {
		if err := r.sent.AddAll(newlySent); err != nil {
			return res, fmt.Errorf("failed to persist sent reminders: %w", err)
		}
	}
	res.Sent = len(newlySent)

	r.log.InfoContext(ctx, "Checked reminders", "due", res.Due, "sent", res.Sent, "failed", res.Failed)
	return res, nil
}

// Due returns the events starting within Window of now+leadDays and still
// in the future.
func Due(events []event.CalendarEvent, now time.Time, leadDays int) []event.CalendarEvent {
	target := now.AddDate(0, 0, leadDays)
	var out []event.CalendarEvent
	for _, ev := range events {
		delta := ev.Start.Sub(target)
		if delta < 0 {
			delta = -delta
		}
		if delta < Window && ev.Start.After(now) {
			out = append(out, ev)
		}
	}
	return out
}

// Render fills the template placeholders {days}, {title}, {date},
// {location}, {description} and {link}. Optional fields render as a
// labelled line or as nothing.
func Render(template string, ev event.CalendarEvent, days int) string {
	var location, description, link string
	if ev.Location != "" {
		location = "Location: " + ev.Location + "\n"
	}
	if ev.Description != "" {
		description = "Description: " + event.Clip(ev.Description, 200) + "\n"
	}
	if ev.ExternalLink != "" {
		link = "Link: " + ev.ExternalLink + "\n"
	}

	return strings.NewReplacer(
		"{days}", strconv.Itoa(days),
		"{title}", ev.Title,
		"{date}", ev.Start.UTC().Format("2006-01-02 15:04"),
		"{location}", location,
		"{description}", description,
		"{link}", link,
	).Replace(template)
}
