// Package event defines the canonical calendar event, its identity
// signature, and the normalizer that turns untrusted extractor output into
// admitted events.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// SourceType records where an event's text came from.
type SourceType string

// Known source types.
const (
	SourceText  SourceType = "text"
	SourcePDF   SourceType = "pdf"
	SourceImage SourceType = "image"
)

// CalendarEvent is a normalized, admitted event. Start and End are UTC.
type CalendarEvent struct {
	Title           string
	Start           time.Time
	End             *time.Time
	Description     string
	Location        string
	SourceGroup     string
	SourceMessageID int64
	Confidence      float64
	SourceType      SourceType
	ExternalLink    string
}

// EffectiveEnd returns End, or Start when the event has no end.
func (e CalendarEvent) EffectiveEnd() time.Time {
	if e.End != nil {
		return *e.End
	}
	return e.Start
}

// Signature is the identity of an event for deduplication.
type Signature struct {
	Title           string
	Date            string
	SourceGroup     string
	SourceMessageID int64
}

// Signature returns the identity of e. Events with equal signatures are the
// same event regardless of description or location.
func (e CalendarEvent) Signature() Signature {
	return Signature{
		Title:           e.Title,
		Date:            e.Start.UTC().Format(time.DateOnly),
		SourceGroup:     e.SourceGroup,
		SourceMessageID: e.SourceMessageID,
	}
}

// ID is a stable identifier derived from the signature.
func (e CalendarEvent) ID() string {
	s := e.Signature()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%d", s.Title, s.Date, s.SourceGroup, s.SourceMessageID)))
	return hex.EncodeToString(sum[:16])
}

// reminderKeyLayout renders UTC as "+00:00", the offset form kept in sent
// reminder ledgers.
const reminderKeyLayout = "2006-01-02T15:04:05-07:00"

// ReminderKey identifies one occurrence for the sent reminder ledger.
func (e CalendarEvent) ReminderKey() string {
	return e.Title + ":" + e.Start.UTC().Format(reminderKeyLayout)
}

// Clip returns at most the first n runes of s.
func Clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ProcessedKey identifies a source message for the processed ledger.
func ProcessedKey(sourceGroup string, messageID int64) string {
	return fmt.Sprintf("%s:%d", sourceGroup, messageID)
}

// record is the on-disk shape of an event.
type record struct {
	Title           string     `json:"title"`
	StartDate       string     `json:"start_date"`
	EndDate         *string    `json:"end_date"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	SourceGroup     string     `json:"source_group"`
	SourceMessageID int64      `json:"source_message_id"`
	Confidence      float64    `json:"confidence_score"`
	SourceType      SourceType `json:"source_type"`
	TelegramLink    string     `json:"telegram_link,omitempty"`
	Timestamp       *int64     `json:"timestamp,omitempty"`
}

// MarshalJSON writes the stored form, including the derived timestamp.
func (e CalendarEvent) MarshalJSON() ([]byte, error) {
	ts := e.Start.Unix()
	r := record{
		Title:           e.Title,
		StartDate:       e.Start.UTC().Format(time.RFC3339),
		Description:     e.Description,
		Location:        e.Location,
		SourceGroup:     e.SourceGroup,
		SourceMessageID: e.SourceMessageID,
		Confidence:      e.Confidence,
		SourceType:      e.SourceType,
		TelegramLink:    e.ExternalLink,
		Timestamp:       &ts,
	}
	if e.End != nil {
		end := e.End.UTC().Format(time.RFC3339)
		r.EndDate = &end
	}
	return json.Marshal(r)
}

// UnmarshalJSON reads the stored form. The ISO start string is
// authoritative; timestamp is only used when start_date is unusable.
func (e *CalendarEvent) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}

	start, err := parseStored(r.StartDate)
	if err != nil {
		if r.Timestamp == nil {
			return fmt.Errorf("event %q: %w", r.Title, err)
		}
		start = time.Unix(*r.Timestamp, 0).UTC()
	}

	var end *time.Time
	if r.EndDate != nil && *r.EndDate != "" {
		t, err := parseStored(*r.EndDate)
		if err != nil {
			return fmt.Errorf("event %q end: %w", r.Title, err)
		}
		end = &t
	}

	*e = CalendarEvent{
		Title:           r.Title,
		Start:           start,
		End:             end,
		Description:     r.Description,
		Location:        r.Location,
		SourceGroup:     r.SourceGroup,
		SourceMessageID: r.SourceMessageID,
		Confidence:      r.Confidence,
		SourceType:      r.SourceType,
		ExternalLink:    r.TelegramLink,
	}
	return nil
}

// storedLayouts accepts RFC 3339 as written by MarshalJSON and the naive
// ISO form, which is read as UTC.
var storedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

func parseStored(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range storedLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q: %w", ErrMalformedDate, s, firstErr)
}
