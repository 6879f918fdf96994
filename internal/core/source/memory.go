package source

import "context"

// SliceCursor serves records from an in-memory slice. It backs the sandbox
// wiring in tests and doubles as the reference Cursor implementation: lazy,
// single-pass, cancellable between records.
type SliceCursor[T any] struct {
	records []T
	pos     int
	skipped int
	closed  bool

	// failAfter injects ErrSourceUnavailable after N records when >= 0.
	failAfter int
}

// FromSlice creates a cursor over the given records.
func FromSlice[T any](records []T) *SliceCursor[T] {
	return &SliceCursor[T]{records: records, failAfter: -1}
}

// FromSliceFailingAfter creates a cursor that yields n records and then fails
// with ErrSourceUnavailable. Used to test mid-scan store outages.
func FromSliceFailingAfter[T any](records []T, n int) *SliceCursor[T] {
	return &SliceCursor[T]{records: records, failAfter: n}
}

// WithSkipped marks n records as skipped for schema-mismatch accounting tests.
func (c *SliceCursor[T]) WithSkipped(n int) *SliceCursor[T] {
	c.skipped = n
	return c
}

func (c *SliceCursor[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if c.closed {
		return zero, false, ErrSourceUnavailable
	}
	if c.failAfter >= 0 && c.pos >= c.failAfter {
		return zero, false, ErrSourceUnavailable
	}
	if c.pos >= len(c.records) {
		return zero, false, nil
	}
	rec := c.records[c.pos]
	c.pos++
	return rec, true, nil
}

func (c *SliceCursor[T]) Skipped() int { return c.skipped }

func (c *SliceCursor[T]) Close() error {
	c.closed = true
	return nil
}
