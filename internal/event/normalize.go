package event

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Normalization and admission failures. A record failing with any of them
// is dropped; the rest of its batch is still processed.
var (
	ErrMalformedDate = errors.New("malformed date")
	ErrMissingTitle  = errors.New("missing title")
	ErrLowConfidence = errors.New("confidence below threshold")
	ErrTooOld        = errors.New("start precedes message date")
)

const (
	// MinConfidence is the admission threshold.
	MinConfidence = 0.5
	// DefaultConfidence applies when the extractor reports no score.
	DefaultConfidence = 0.8
	// MaxStartLag bounds how far before its message an event may start.
	MaxStartLag = 24 * time.Hour
)

// RawEvent is one candidate as returned by the extraction oracle. Nothing in
// it is trusted.
type RawEvent struct {
	Title           string   `json:"title"`
	StartDate       string   `json:"start_date"`
	StartTime       string   `json:"start_time,omitempty"`
	EndDate         string   `json:"end_date,omitempty"`
	EndTime         string   `json:"end_time,omitempty"`
	Description     string   `json:"description,omitempty"`
	Location        string   `json:"location,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
}

// Result is the outcome for one raw record: either Event or Err is set.
type Result struct {
	Raw   RawEvent
	Event CalendarEvent
	Err   error
}

// OK reports whether the record was admitted.
func (r Result) OK() bool { return r.Err == nil }

// Normalizer validates raw records and applies the admission gate.
type Normalizer struct {
	logger        *slog.Logger
	minConfidence float64
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithMinConfidence overrides the admission threshold. Non-positive
// values keep MinConfidence.
func WithMinConfidence(v float64) NormalizerOption {
	return func(n *Normalizer) {
		if v > 0 {
			n.minConfidence = v
		}
	}
}

// NewNormalizer creates a Normalizer logging through logger.
func NewNormalizer(logger *slog.Logger, opts ...NormalizerOption) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{
		logger:        logger.With("component", "normalizer"),
		minConfidence: MinConfidence,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeBatch normalizes every record independently against
// messageDate, the UTC time the originating message was posted.
func (n *Normalizer) NormalizeBatch(raws []RawEvent, messageDate time.Time) []Result {
	results := make([]Result, 0, len(raws))
	for _, raw := range raws {
		ev, err := n.Normalize(raw, messageDate)
		if err != nil {
			n.logger.Warn("Dropping extracted event",
				"title", raw.Title,
				"start_date", raw.StartDate,
				"error", err)
		}
		results = append(results, Result{Raw: raw, Event: ev, Err: err})
	}
	return results
}

// Normalize converts one record and applies the admission gate.
func (n *Normalizer) Normalize(raw RawEvent, messageDate time.Time) (CalendarEvent, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return CalendarEvent{}, ErrMissingTitle
	}

	start, err := parseDate(raw.StartDate)
	if err != nil {
		return CalendarEvent{}, err
	}
	if raw.StartTime != "" {
		start = n.withTime(start, raw.StartTime, "start_time")
	}

	var end *time.Time
	switch {
	case raw.EndDate != "":
		t, err := parseDate(raw.EndDate)
		if err != nil {
			return CalendarEvent{}, fmt.Errorf("end: %w", err)
		}
		if raw.EndTime != "" {
			t = n.withTime(t, raw.EndTime, "end_time")
		}
		end = &t
	case raw.EndTime != "":
		day := start.Truncate(24 * time.Hour)
		t := n.withTime(day, raw.EndTime, "end_time")
		end = &t
	}

	confidence := DefaultConfidence
	if raw.ConfidenceScore != nil {
		confidence = *raw.ConfidenceScore
	}

	ev := CalendarEvent{
		Title:       title,
		Start:       start,
		End:         end,
		Description: strings.TrimSpace(raw.Description),
		Location:    strings.TrimSpace(raw.Location),
		Confidence:  confidence,
	}

	if err := n.admit(ev, messageDate); err != nil {
		return ev, err
	}
	return ev, nil
}

// admit applies the admission gate to an already normalized event.
func (n *Normalizer) admit(ev CalendarEvent, messageDate time.Time) error {
	if ev.Confidence < n.minConfidence {
		return fmt.Errorf("%w: %.2f", ErrLowConfidence, ev.Confidence)
	}
	floor := messageDate.UTC().Add(-MaxStartLag)
	if ev.Start.Before(floor) {
		return fmt.Errorf("%w: start %s, floor %s", ErrTooOld, ev.Start.Format(time.RFC3339), floor.Format(time.RFC3339))
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return t, nil
}

// withTime sets HH:MM on day. An invalid value is logged and day is
// returned unchanged.
func (n *Normalizer) withTime(day time.Time, hhmm, field string) time.Time {
	hour, minute, err := parseClock(hhmm)
	if err != nil {
		n.logger.Warn("Ignoring invalid time", "field", field, "value", hhmm, "error", err)
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

func parseClock(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || !isDigits(parts[0]) || !isDigits(parts[1]) {
		return 0, 0, fmt.Errorf("invalid time format %q", s)
	}
	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])
	if hour < 0 || hour >= 24 || minute < 0 || minute >= 60 {
		return 0, 0, fmt.Errorf("invalid time values %q", s)
	}
	return hour, minute, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
