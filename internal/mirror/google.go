// Package mirror pushes newly stored events to an external Google Calendar.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/avast/retry-go/v4"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/event"
)

// reminderLeadMinutes is the popup and email reminder lead set on every
// mirrored event.
const reminderLeadMinutes = 24 * 60

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// EventInserter is the slice of the Calendar API the mirror needs.
type EventInserter interface {
	Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error)
}

// Google mirrors events into one Google Calendar.
type Google struct {
	api        EventInserter
	calendarID string
	attempts   uint
	delay      time.Duration
	log        *slog.Logger
}

// NewGoogle authenticates with a service account credentials file.
func NewGoogle(ctx context.Context, cfg config.MirrorConfig, logger *slog.Logger) (*Google, error) {
	srv, err := calendar.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(calendar.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("google calendar authentication failed: %w", err)
	}

	log := logger.With("component", "calendar_mirror")
	log.Info("Authenticated with Google Calendar API", "calendar_id", cfg.CalendarID)
	return newGoogle(serviceInserter{srv: srv}, cfg.CalendarID, cfg.Attempts, log), nil
}

func newGoogle(api EventInserter, calendarID string, attempts uint, log *slog.Logger) *Google {
	if attempts == 0 {
		attempts = 1
	}
	return &Google{
		api:        api,
		calendarID: calendarID,
		attempts:   attempts,
		delay:      time.Second,
		log:        log,
	}
}

// Push creates ev in the calendar and returns its external ID.
func (g *Google) Push(ctx context.Context, ev event.CalendarEvent) (string, error) {
	body := BuildEvent(ev)

	var created *calendar.Event
	err := retry.Do(
		func() error {
			var err error
			created, err = g.api.Insert(ctx, g.calendarID, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(g.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retriable),
		retry.OnRetry(func(n uint, err error) {
			g.log.WarnContext(ctx, "Retrying calendar insert", "attempt", n+1, "title", ev.Title, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create calendar event: %w", err)
	}

	g.log.InfoContext(ctx, "Created calendar event", "title", ev.Title, "id", created.Id, "link", created.HtmlLink)
	return created.Id, nil
}

// BuildEvent maps a stored event to the Calendar API shape. Times are sent
// in UTC and a missing end is set to the start.
func BuildEvent(ev event.CalendarEvent) *calendar.Event {
	out := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start: &calendar.EventDateTime{
			DateTime: ev.Start.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: ev.EffectiveEnd().UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: reminderLeadMinutes},
				{Method: "email", Minutes: reminderLeadMinutes},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if ev.Location != "" {
		out.Location = ev.Location
	}
	if u := urlPattern.FindString(ev.Description); u != "" {
		out.Source = &calendar.EventSource{Title: "Source", Url: u}
	} else if ev.ExternalLink != "" {
		out.Source = &calendar.EventSource{Title: "Telegram", Url: ev.ExternalLink}
	}
	return out
}

// retriable retries rate limiting and server side failures.
func retriable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError
}

type serviceInserter struct {
	srv *calendar.Service
}

func (s serviceInserter) Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	return s.srv.Events.Insert(calendarID, ev).Context(ctx).Do()
}
