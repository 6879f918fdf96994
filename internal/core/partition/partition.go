package partition

import "hash/fnv"

// DefaultCount is the partition count used when a caller doesn't choose one.
// It bounds per-partition accumulator growth, not parallelism — worker count
// is a separate knob.
const DefaultCount = 64

// For returns the partition ID for a group key, in [0, count).
// Stable and deterministic: the same key always maps to the same partition,
// which is what makes a partitioned aggregation re-runnable with identical
// merged results. Uses FNV-32a (stdlib, fast, well-distributed).
func For(groupKey string, count int) int {
	if count <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(groupKey))
	return int(h.Sum32()) % count
}
