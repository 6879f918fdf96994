package source

import (
	"context"
	"errors"
	"time"
)

// ErrSourceUnavailable marks a backing store that cannot be reached.
// Fatal to the requesting analysis, never to the whole pipeline.
var ErrSourceUnavailable = errors.New("record source unavailable")

// ErrSchemaMismatch marks a stored record that cannot be decoded into the
// expected shape. Cursors recover from it locally: the record is skipped and
// counted, never silently dropped.
var ErrSchemaMismatch = errors.New("record does not match expected schema")

// TimeRange bounds a scan over a time-ordered source. Start is inclusive,
// End exclusive.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range. Zero bounds are open.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// Filter is one equality/comparison predicate over a record field.
// A QuerySpec's filters compose conjunctively (AND).
type Filter struct {
	Field string
	Op    string // "=", ">=", "<"
	Value interface{}
}

// QuerySpec configures a cursor open. The document-query variant honors
// Filters and Projection; the range-scan variant honors KeyPrefix and
// TimeRange against its composite row key.
type QuerySpec struct {
	Filters    []Filter
	Projection []string

	// KeyPrefix bounds a range scan to row keys starting with this prefix
	// (typically a customer id). Empty means full scan.
	KeyPrefix string

	// TimeRange bounds a range scan on the key's time component.
	TimeRange *TimeRange
}

// Cursor is a lazy, single-pass record stream. Restartable only by reopening.
//
// Next blocks on storage I/O and checks ctx between records, never mid-record.
// It returns ok=false with a nil error at end of stream, and ok=false with a
// non-nil error on failure (including ctx cancellation). Undecodable records
// are skipped transparently and reflected in Skipped.
//
// Close releases the underlying store handle. It is safe to call Close after
// an error exit and more than once.
type Cursor[T any] interface {
	Next(ctx context.Context) (record T, ok bool, err error)
	Skipped() int
	Close() error
}

// Collect drains a cursor into a slice. Intended for bounded result sets and
// tests; the analytical passes consume cursors record by record instead.
func Collect[T any](ctx context.Context, cur Cursor[T]) ([]T, error) {
	defer cur.Close()

	var out []T
	for {
		rec, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}
