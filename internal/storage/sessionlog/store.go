// Package sessionlog implements the key-scan RecordSource variant on
// BadgerDB: session events stored under composite keys that sort by
// customer, then start time, then session, so customer-scoped scans are
// contiguous prefix iterations.
package sessionlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	v1 "github.com/strata-lab/project-strata/internal/api/v1"
	"github.com/strata-lab/project-strata/internal/core/source"
)

// keyspacePrefix namespaces session event keys so the store can share a
// database with future keyspaces.
const keyspacePrefix = "sess/"

// Config holds the BadgerDB settings for the session log.
type Config struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string

	// InMemory opens the store without disk persistence. Used in tests.
	InMemory bool

	// SyncWrites makes every write durable before returning.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger
}

// Store implements source.SessionStore on BadgerDB.
type Store struct {
	db *badger.DB
}

// badgerLogger adapts slog to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error("[SessionLog] " + fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn("[SessionLog] " + fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug("[SessionLog] " + fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug("[SessionLog] " + fmt.Sprintf(format, args...))
}

// Open opens the session log store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("session log path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create session log directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log database: %w", err)
	}

	slog.Info("[SessionLog] Store opened",
		"path", cfg.Path,
		"in_memory", cfg.InMemory,
		"sync_writes", cfg.SyncWrites)

	return &Store{db: db}, nil
}

// Close releases the database. Pending scans fail after this returns.
func (s *Store) Close() error { return s.db.Close() }

// Healthy reports whether the store can still serve scans.
func (s *Store) Healthy() bool { return !s.db.IsClosed() }

// schemaMismatch classifies an event decode failure. The returned error
// wraps source.ErrSchemaMismatch so errors.Is can identify the failure class.
func schemaMismatch(err error) error {
	return fmt.Errorf("%w: %v", source.ErrSchemaMismatch, err)
}

// eventKey builds the composite row key for a session event. The timestamp
// segment is RFC 3339 in UTC, which sorts lexicographically in time order,
// so one customer's events iterate chronologically.
func eventKey(ev *v1.SessionEvent) []byte {
	return []byte(keyspacePrefix +
		ev.CustomerID + "|" +
		ev.StartedAt.UTC().Format(time.RFC3339) + "|" +
		ev.SessionID)
}

// PutEvent writes a session event. Writes are idempotent: re-ingesting the
// same (customer, start time, session) overwrites the identical document.
func (s *Store) PutEvent(ctx context.Context, ev *v1.SessionEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.Contains(ev.CustomerID, "|") || strings.Contains(ev.SessionID, "|") {
		return errors.New("customer_id and session_id must not contain '|'")
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(ev), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write session event: %w", err)
	}

	slog.Debug("[SessionLog] Stored session event",
		"customer_id", ev.CustomerID,
		"session_id", ev.SessionID)
	return nil
}

// OpenSessions opens a lazy key-ordered scan. The spec's KeyPrefix narrows
// the scan to keys under that customer prefix; the TimeRange is applied
// per-event during iteration since the key begins with the customer segment.
func (s *Store) OpenSessions(ctx context.Context, spec source.QuerySpec) (source.Cursor[v1.SessionEvent], error) {
	if s.db.IsClosed() {
		return nil, fmt.Errorf("%w: session log closed", source.ErrSourceUnavailable)
	}

	txn := s.db.NewTransaction(false)

	iterOpts := badger.DefaultIteratorOptions
	prefix := []byte(keyspacePrefix + spec.KeyPrefix)
	iterOpts.Prefix = prefix

	it := txn.NewIterator(iterOpts)
	it.Seek(prefix)

	return &sessionCursor{
		txn:       txn,
		it:        it,
		timeRange: spec.TimeRange,
	}, nil
}

// sessionCursor streams decoded session events off a prefix iterator. It
// holds its read transaction open for the life of the scan, giving a single
// consistent snapshot.
type sessionCursor struct {
	txn       *badger.Txn
	it        *badger.Iterator
	timeRange *source.TimeRange
	skipped   int
	closed    bool
}

func (c *sessionCursor) Next(ctx context.Context) (v1.SessionEvent, bool, error) {
	var zero v1.SessionEvent
	if c.closed {
		return zero, false, fmt.Errorf("%w: cursor closed", source.ErrSourceUnavailable)
	}
	for ; c.it.Valid(); c.it.Next() {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}

		var ev v1.SessionEvent
		err := c.it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &ev)
		})
		if err == nil {
			err = ev.Validate()
		}
		if err != nil {
			c.skipped++
			slog.Warn("[SessionLog] Skipping undecodable session event",
				"key", string(c.it.Item().Key()),
				"error", schemaMismatch(err))
			continue
		}

		if c.timeRange != nil && !c.timeRange.Contains(ev.StartedAt) {
			continue
		}

		c.it.Next()
		return ev, true, nil
	}
	return zero, false, nil
}

func (c *sessionCursor) Skipped() int { return c.skipped }

func (c *sessionCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.it.Close()
	c.txn.Discard()
	return nil
}
