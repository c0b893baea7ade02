// Package store persists admitted events and the idempotence ledgers as
// JSON files. Every write replaces the whole file atomically.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/edgard/calendarbot/internal/event"
	"github.com/edgard/calendarbot/internal/metrics"
)

// Mirror receives events the first time they are stored.
type Mirror interface {
	Push(ctx context.Context, ev event.CalendarEvent) (string, error)
}

// EventStore is the read/merge surface used by the pipeline, the reminder
// cycle and the HTTP handlers.
type EventStore interface {
	Load(ctx context.Context) ([]event.CalendarEvent, error)
	Merge(ctx context.Context, events []event.CalendarEvent) (int, error)
}

// FileStore keeps the event collection in a single JSON file. Nothing is
// cached: each operation reads the file again.
type FileStore struct {
	path    string
	logger  *slog.Logger
	mirror  Mirror
	metrics *metrics.Metrics

	mu sync.Mutex
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithMirror forwards newly stored events to m.
func WithMirror(m Mirror) Option {
	return func(s *FileStore) { s.mirror = m }
}

// WithMetrics records store activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *FileStore) { s.metrics = m }
}

// NewFileStore creates a store backed by path. The file is created on the
// first merge.
func NewFileStore(path string, logger *slog.Logger, opts ...Option) *FileStore {
	s := &FileStore{
		path:   path,
		logger: logger.With("component", "event_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns every stored event. A missing, empty or corrupt file yields
// an empty collection; only I/O failures are returned.
func (s *FileStore) Load(ctx context.Context) ([]event.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *FileStore) load(ctx context.Context) ([]event.CalendarEvent, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read event store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.ErrorContext(ctx, "Event store is corrupt, treating as empty", "path", s.path, "error", err)
		return nil, nil
	}

	events := make([]event.CalendarEvent, 0, len(raw))
	for i, r := range raw {
		var ev event.CalendarEvent
		if err := json.Unmarshal(r, &ev); err != nil {
			s.logger.ErrorContext(ctx, "Skipping unreadable stored event", "index", i, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Merge appends the events whose signature is not yet stored, in input
// order, rewrites the file and returns how many were added. Newly added
// events are then pushed to the mirror; mirror failures are only logged.
func (s *FileStore) Merge(ctx context.Context, events []event.CalendarEvent) (int, error) {
	added, err := s.merge(ctx, events)
	if err != nil {
		return 0, err
	}

	s.metrics.EventsStored(len(added))
	if s.mirror != nil {
		for _, ev := range added {
			id, err := s.mirror.Push(ctx, ev)
			s.metrics.MirrorPush(err)
			if err != nil {
				s.logger.ErrorContext(ctx, "Failed to mirror event", "title", ev.Title, "error", err)
				continue
			}
			s.logger.InfoContext(ctx, "Mirrored event", "title", ev.Title, "external_id", id)
		}
	}
	return len(added), nil
}

func (s *FileStore) merge(ctx context.Context, events []event.CalendarEvent) ([]event.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[event.Signature]struct{}, len(existing)+len(events))
	for _, ev := range existing {
		seen[ev.Signature()] = struct{}{}
	}

	var added []event.CalendarEvent
	for _, ev := range events {
		sig := ev.Signature()
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		added = append(added, ev)
	}

	if len(added) == 0 && existing != nil {
		return nil, nil
	}

	all := append(existing, added...)
	if all == nil {
		all = []event.CalendarEvent{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode events: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Merged events", "added", len(added), "total", len(all))
	return added, nil
}
