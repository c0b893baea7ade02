package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
)

// Ledger is a persisted set of strings. It records operations that already
// happened (processed messages, sent reminders) and simple ID lists
// (subscribers, dismissed events). Every mutation rewrites the file.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewLedger creates a ledger backed by path.
func NewLedger(path string, logger *slog.Logger) *Ledger {
	return &Ledger{
		path:   path,
		logger: logger.With("component", "ledger", "path", path),
	}
}

// Has reports whether key is recorded.
func (l *Ledger) Has(key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, err := l.read()
	if err != nil {
		return false, err
	}
	_, ok := set[key]
	return ok, nil
}

// Add records key.
func (l *Ledger) Add(key string) error {
	return l.AddAll([]string{key})
}

// AddAll records every key with a single write.
func (l *Ledger) AddAll(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return l.update(func(set map[string]struct{}) bool {
		changed := false
		for _, k := range keys {
			if _, ok := set[k]; !ok {
				set[k] = struct{}{}
				changed = true
			}
		}
		return changed
	})
}

// Remove deletes key if present.
func (l *Ledger) Remove(key string) error {
	return l.update(func(set map[string]struct{}) bool {
		if _, ok := set[key]; !ok {
			return false
		}
		delete(set, key)
		return true
	})
}

// Clear empties the ledger.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(map[string]struct{}{})
}

// Members returns the recorded keys in sorted order.
func (l *Ledger) Members() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, err := l.read()
	if err != nil {
		return nil, err
	}
	return sortedKeys(set), nil
}

// Set returns the recorded keys as a lookup set.
func (l *Ledger) Set() (map[string]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *Ledger) update(fn func(map[string]struct{}) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, err := l.read()
	if err != nil {
		return err
	}
	if !fn(set) {
		return nil
	}
	return l.write(set)
}

func (l *Ledger) read() (map[string]struct{}, error) {
	set := make(map[string]struct{})

	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return set, nil
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		l.logger.Error("Ledger is corrupt, treating as empty", "error", err)
		return set, nil
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

func (l *Ledger) write(set map[string]struct{}) error {
	data, err := json.Marshal(sortedKeys(set))
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	return writeFileAtomic(l.path, data)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
