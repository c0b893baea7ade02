// Package oracle asks a language model for calendar event candidates found
// in a piece of text. Its output is structured but untrusted; callers run it
// through the event normalizer.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/event"
)

// Oracle extracts raw event records from text. referenceDate anchors
// relative expressions such as "tomorrow".
type Oracle interface {
	Extract(ctx context.Context, text string, referenceDate time.Time) ([]event.RawEvent, error)
}

// Kind classifies an oracle failure.
type Kind string

// Failure kinds.
const (
	KindTransport Kind = "transport"
	KindParse     Kind = "parse"
	KindBlocked   Kind = "blocked"
)

// Error is returned by every Oracle implementation.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s oracle %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds the oracle selected by cfg.Provider.
func New(ctx context.Context, cfg config.OracleConfig, logger *slog.Logger) (Oracle, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGemini(ctx, cfg, logger)
	case "openai":
		return NewOpenAI(cfg, logger)
	case "anthropic":
		return NewAnthropic(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}
