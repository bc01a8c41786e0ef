// Package errlog appends failure records to a durable JSON document.
package errlog

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/investmcp/internal/logging"
	"github.com/JonMunkholm/investmcp/internal/store"
)

// DefaultPath is the error document location relative to the root.
const DefaultPath = "db/errors.json"

// Entry is one recorded failure. Entries are immutable once appended.
type Entry struct {
	ErrorMessage string `json:"error_message"`
	Timestamp    string `json:"timestamp"`
}

// Log is an append-only sequence of Entry stored as one document.
type Log struct {
	store *store.Store
	path  string
	now   func() time.Time

	// mu serializes the read-modify-write of the document
	mu sync.Mutex
}

// New creates a Log writing to path through s.
func New(s *store.Store, path string) *Log {
	if path == "" {
		path = DefaultPath
	}
	return &Log{store: s, path: path, now: time.Now}
}

// Path returns the document path relative to the root.
func (l *Log) Path() string {
	return l.path
}

// Record appends message with the current UTC time. It never fails: a
// problem while recording is written to the process log and dropped, so the
// operation being documented is never taken down by its own error report.
func (l *Log) Record(ctx context.Context, message string) {
	logger := logging.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("error log panic", "panic", r, "message", message)
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []Entry
	if err := l.store.Load(l.path, []Entry{}, &entries); err != nil {
		logger.Error("error log load failed", "path", l.path, "error", err, "message", message)
		return
	}

	entries = append(entries, Entry{
		ErrorMessage: message,
		Timestamp:    l.now().UTC().Format(time.RFC3339Nano),
	})

	if err := l.store.Save(l.path, entries); err != nil {
		logger.Error("error log save failed", "path", l.path, "error", err, "message", message)
		return
	}

	logger.Debug("error recorded", "path", l.path, "count", len(entries))
}

// Entries returns the recorded failures in append order.
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []Entry
	if err := l.store.Load(l.path, []Entry{}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
