package aggregate

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/strata-lab/project-strata/internal/core/partition"
	"github.com/strata-lab/project-strata/internal/core/source"
)

// Spec configures one aggregation pass.
type Spec[T any] struct {
	// Metric names the output column, e.g. "total_spent".
	Metric string

	// Operator is a key into Operators: count, sum or avg.
	Operator string

	// GroupBy extracts the group key from a record. Records mapped to an
	// empty key are ignored (they carry no usable identity).
	GroupBy func(T) string

	// Value extracts the numeric input. May be nil for count.
	Value func(T) decimal.Decimal
}

func (s Spec[T]) value(rec T) decimal.Decimal {
	if s.Value == nil {
		return decimal.Zero
	}
	return s.Value(rec)
}

// Options controls the partitioned execution of a pass.
type Options struct {
	// Partitions is P in hash(group_key) mod P. Each partition's accumulator
	// map is exclusively owned by one worker until the merge barrier, so the
	// per-partition state stays bounded and lock-free.
	Partitions int

	// Workers caps concurrent partition reducers.
	Workers int
}

// DefaultOptions returns safe defaults for batch runs.
func DefaultOptions() Options {
	return Options{Partitions: partition.DefaultCount, Workers: 4}
}

func (o Options) normalized() Options {
	n := o
	if n.Partitions <= 0 {
		n.Partitions = partition.DefaultCount
	}
	if n.Workers <= 0 {
		n.Workers = 4
	}
	return n
}

// Run executes a streaming group-by pass over a cursor: a single pass with
// group state held in a map from group key to running accumulator.
//
// The cursor is closed before returning. Cancellation is checked between
// records by the cursor itself.
func Run[T any](ctx context.Context, cur source.Cursor[T], spec Spec[T]) (Table, error) {
	op, ok := Operators[spec.Operator]
	if !ok {
		return Table{}, fmt.Errorf("unknown aggregation operator %q", spec.Operator)
	}
	defer cur.Close()

	accs := make(map[string]Accumulator)
	for {
		rec, ok, err := cur.Next(ctx)
		if err != nil {
			return Table{}, err
		}
		if !ok {
			break
		}
		key := spec.GroupBy(rec)
		if key == "" {
			continue
		}
		accs[key] = op.Fold(accs[key], spec.value(rec))
	}

	return tableFromAccumulators(spec.Metric, op, accs, cur.Skipped()), nil
}

// RunPartitioned executes the same pass with the records partitioned by
// hash(group_key) mod P. Each partition is reduced independently by a worker
// owning its accumulator map; partials meet only at the reduction barrier,
// where same-group accumulators are merged. The merged table is identical to
// a single-partition Run regardless of P (within decimal-exact arithmetic).
//
// The single reader goroutine is the only place the cursor is touched, so the
// blocking store I/O never happens under a lock.
func RunPartitioned[T any](ctx context.Context, cur source.Cursor[T], spec Spec[T], opts Options) (Table, error) {
	op, ok := Operators[spec.Operator]
	if !ok {
		return Table{}, fmt.Errorf("unknown aggregation operator %q", spec.Operator)
	}
	opts = opts.normalized()
	defer cur.Close()

	type keyedValue struct {
		pid int
		key string
		val decimal.Decimal
	}

	workers := opts.Workers
	if workers > opts.Partitions {
		workers = opts.Partitions
	}

	// One input channel per worker. Partition pid is owned by worker
	// pid mod workers, so every partition has a live consumer for the whole
	// read — a worker never waits on one partition's close before draining
	// another.
	inputs := make([]chan keyedValue, workers)
	for i := range inputs {
		inputs[i] = make(chan keyedValue, 64)
	}

	// Buffered to Partitions so workers can flush all their partials without
	// waiting on the merge loop.
	results := make(chan map[string]Accumulator, opts.Partitions)

	// Partition reducers: each worker owns the accumulator maps for a
	// disjoint set of partitions, so no locking is needed until the barrier.
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(in <-chan keyedValue) {
			defer wg.Done()
			locals := make(map[int]map[string]Accumulator)
			for kv := range in {
				local := locals[kv.pid]
				if local == nil {
					local = make(map[string]Accumulator)
					locals[kv.pid] = local
				}
				local[kv.key] = op.Fold(local[kv.key], kv.val)
			}
			for _, local := range locals {
				results <- local
			}
		}(inputs[w])
	}

	// Single-pass read, fanned out by group-key hash.
	var readErr error
	for {
		rec, ok, err := cur.Next(ctx)
		if err != nil {
			readErr = err
			break
		}
		if !ok {
			break
		}
		key := spec.GroupBy(rec)
		if key == "" {
			continue
		}
		pid := partition.For(key, opts.Partitions)
		inputs[pid%workers] <- keyedValue{pid: pid, key: key, val: spec.value(rec)}
	}
	for _, ch := range inputs {
		close(ch)
	}

	wg.Wait()
	close(results)

	if readErr != nil {
		return Table{}, readErr
	}

	// Reduction barrier: merge per-partition partials. Partitions are
	// disjoint by construction, but Merge keeps this correct even if a
	// future caller feeds overlapping partials.
	merged := make(map[string]Accumulator)
	for local := range results {
		for key, acc := range local {
			if existing, ok := merged[key]; ok {
				merged[key] = op.Merge(existing, acc)
				continue
			}
			merged[key] = acc
		}
	}

	return tableFromAccumulators(spec.Metric, op, merged, cur.Skipped()), nil
}
