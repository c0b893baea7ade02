// Package pipeline runs one source message or uploaded file through text
// extraction, the oracle, the normalizer and the event store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/calendarbot/internal/event"
	"github.com/edgard/calendarbot/internal/metrics"
	"github.com/edgard/calendarbot/internal/oracle"
	"github.com/edgard/calendarbot/internal/source"
	"github.com/edgard/calendarbot/internal/store"
)

// ErrNoText is returned for uploads with no extractable text.
var ErrNoText = errors.New("could not extract text from file or unsupported file type")

// descriptionFallbackLen bounds the source text copied into events the
// oracle left without a description.
const descriptionFallbackLen = 500

// Message is a chat message ready for extraction.
type Message struct {
	ChatID       int64
	ChatTitle    string
	ChatUsername string
	MessageID    int64
	Text         string
	Date         time.Time
	// AttachmentPath is a downloaded document or photo, if any.
	AttachmentPath string
	// Link points back to the message in the chat client.
	Link string
}

// SourceGroup names the originating chat: its title, else its username,
// else its numeric ID.
func (m Message) SourceGroup() string {
	switch {
	case m.ChatTitle != "":
		return m.ChatTitle
	case m.ChatUsername != "":
		return "@" + m.ChatUsername
	default:
		return strconv.FormatInt(m.ChatID, 10)
	}
}

// ProcessedLedger records handled messages.
type ProcessedLedger interface {
	Has(key string) (bool, error)
	Add(key string) error
}

// Deps holds the pipeline collaborators.
type Deps struct {
	Logger     *slog.Logger
	Extractor  source.TextExtractor
	Oracle     oracle.Oracle
	Normalizer *event.Normalizer
	Events     store.EventStore
	Processed  ProcessedLedger
	Metrics    *metrics.Metrics
}

// Pipeline is safe for concurrent use; serialization happens in the store.
type Pipeline struct {
	deps Deps
	log  *slog.Logger
	now  func() time.Time
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	if deps.Normalizer == nil {
		deps.Normalizer = event.NewNormalizer(deps.Logger)
	}
	return &Pipeline{
		deps: deps,
		log:  deps.Logger.With("component", "pipeline"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

type sourceText struct {
	content string
	kind    event.SourceType
}

// ProcessMessage extracts and stores the events of msg. A message already
// in the processed ledger returns nothing and never reaches the oracle.
// Every other message is recorded as processed once its events are stored,
// including when none were found.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg Message) ([]event.CalendarEvent, error) {
	group := msg.SourceGroup()
	key := event.ProcessedKey(group, msg.MessageID)
	log := p.log.With("message_key", key)

	done, err := p.deps.Processed.Has(key)
	if err != nil {
		return nil, fmt.Errorf("failed to check processed ledger: %w", err)
	}
	if done {
		log.DebugContext(ctx, "Skipping already processed message")
		p.deps.Metrics.MessageProcessed("skipped")
		return nil, nil
	}

	var texts []sourceText
	if strings.TrimSpace(msg.Text) != "" {
		texts = append(texts, sourceText{content: msg.Text, kind: event.SourceText})
	}
	if msg.AttachmentPath != "" {
		t, err := p.deps.Extractor.Extract(ctx, msg.AttachmentPath)
		switch {
		case err != nil:
			log.ErrorContext(ctx, "Attachment extraction failed", "error", err)
		case !t.Empty():
			texts = append(texts, sourceText{content: t.Content, kind: t.Kind})
		}
	}

	if len(texts) == 0 {
		log.DebugContext(ctx, "No text or extractable attachment in message")
		p.deps.Metrics.MessageProcessed("empty")
		return nil, p.markProcessed(key)
	}

	date := msg.Date.UTC()
	var admitted []event.CalendarEvent
	for _, t := range texts {
		for _, ev := range p.extract(ctx, t, date) {
			ev.SourceGroup = group
			ev.SourceMessageID = msg.MessageID
			ev.ExternalLink = msg.Link
			admitted = append(admitted, ev)
		}
	}

	// An oracle call cut short by shutdown is not a message without events.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(admitted) > 0 {
		added, err := p.deps.Events.Merge(ctx, admitted)
		if err != nil {
			return nil, fmt.Errorf("failed to store events: %w", err)
		}
		log.InfoContext(ctx, "Stored events from message", "admitted", len(admitted), "added", added)
	} else {
		log.DebugContext(ctx, "No events found in message")
	}

	p.deps.Metrics.MessageProcessed("extracted")
	return admitted, p.markProcessed(key)
}

// ProcessUpload extracts and stores the events of an uploaded file and
// returns how many were admitted. Oracle failures are returned.
func (p *Pipeline) ProcessUpload(ctx context.Context, filename, path string) (int, error) {
	t, err := p.deps.Extractor.Extract(ctx, path)
	if err != nil {
		p.log.WarnContext(ctx, "Upload extraction failed", "filename", filename, "error", err)
		return 0, fmt.Errorf("%w: %v", ErrNoText, err)
	}
	if t.Empty() {
		return 0, ErrNoText
	}

	now := p.now()
	raws, err := p.deps.Oracle.Extract(ctx, t.Content, now)
	p.deps.Metrics.OracleCall(err)
	if err != nil {
		return 0, fmt.Errorf("event extraction failed: %w", err)
	}

	admitted := p.admit(ctx, raws, sourceText{content: t.Content, kind: t.Kind}, now)
	group := "Uploaded File: " + filename
	for i := range admitted {
		admitted[i].SourceGroup = group
		admitted[i].SourceMessageID = rand.Int64N(1 << 31)
	}

	if len(admitted) > 0 {
		if _, err := p.deps.Events.Merge(ctx, admitted); err != nil {
			return 0, fmt.Errorf("failed to store events: %w", err)
		}
	}
	p.log.InfoContext(ctx, "Processed upload", "filename", filename, "kind", t.Kind, "events", len(admitted))
	return len(admitted), nil
}

// extract asks the oracle about one text. Oracle failures are logged and
// yield no events.
func (p *Pipeline) extract(ctx context.Context, t sourceText, date time.Time) []event.CalendarEvent {
	raws, err := p.deps.Oracle.Extract(ctx, t.content, date)
	p.deps.Metrics.OracleCall(err)
	if err != nil {
		p.log.ErrorContext(ctx, "Event extraction failed", "kind", t.kind, "error", err)
		return nil
	}
	return p.admit(ctx, raws, t, date)
}

func (p *Pipeline) admit(ctx context.Context, raws []event.RawEvent, t sourceText, date time.Time) []event.CalendarEvent {
	var out []event.CalendarEvent
	for _, r := range p.deps.Normalizer.NormalizeBatch(raws, date) {
		p.deps.Metrics.Normalized(outcome(r.Err))
		if !r.OK() {
			continue
		}
		ev := r.Event
		ev.SourceType = t.kind
		if ev.Description == "" {
			ev.Description = event.Clip(t.content, descriptionFallbackLen)
		}
		p.log.InfoContext(ctx, "Extracted event",
			"title", ev.Title,
			"start", ev.Start.Format("2006-01-02 15:04"),
			"confidence", ev.Confidence)
		out = append(out, ev)
	}
	return out
}

func (p *Pipeline) markProcessed(key string) error {
	if err := p.deps.Processed.Add(key); err != nil {
		return fmt.Errorf("failed to record processed message: %w", err)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, event.ErrMalformedDate):
		return "malformed_date"
	case errors.Is(err, event.ErrMissingTitle):
		return "missing_title"
	case errors.Is(err, event.ErrLowConfidence):
		return "low_confidence"
	case errors.Is(err, event.ErrTooOld):
		return "too_old"
	default:
		return "invalid"
	}
}
