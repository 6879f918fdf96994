package aggregate

import (
	"github.com/shopspring/decimal"
)

// Supported aggregation operators.
const (
	OpCount = "count"
	OpSum   = "sum"
	OpAvg   = "avg"
)

// Accumulator is the running state for one group. Sum and Count together are
// enough state for every registered operator — avg is the reason both exist.
type Accumulator struct {
	Sum   decimal.Decimal
	Count int64
}

// Operator defines the reduce semantics of an aggregation operator.
// To add a new operator: implement this interface and register it in
// Operators. The aggregation hot path stays a single map lookup — no switch.
type Operator interface {
	// Fold folds an incoming value into a group's accumulator.
	Fold(acc Accumulator, incoming decimal.Decimal) Accumulator

	// Merge combines two partial accumulators for the same group. Called at
	// the reduction barrier when partitions are merged.
	Merge(a, b Accumulator) Accumulator

	// Finalize turns the accumulator into the group's metric value.
	Finalize(acc Accumulator) decimal.Decimal
}

// Operators is the registry of all supported aggregation operators.
var Operators = map[string]Operator{
	OpCount: countOp{},
	OpSum:   sumOp{},
	OpAvg:   avgOp{},
}

// ValidOperator reports whether op is a registered aggregation operator.
func ValidOperator(op string) bool {
	_, ok := Operators[op]
	return ok
}

// countOp counts records per group. The incoming value is ignored.
type countOp struct{}

func (countOp) Fold(acc Accumulator, _ decimal.Decimal) Accumulator {
	acc.Count++
	return acc
}

func (countOp) Merge(a, b Accumulator) Accumulator {
	return Accumulator{Count: a.Count + b.Count}
}

func (countOp) Finalize(acc Accumulator) decimal.Decimal {
	return decimal.NewFromInt(acc.Count)
}

// sumOp accumulates the sum of incoming values.
type sumOp struct{}

func (sumOp) Fold(acc Accumulator, inc decimal.Decimal) Accumulator {
	acc.Sum = acc.Sum.Add(inc)
	acc.Count++
	return acc
}

func (sumOp) Merge(a, b Accumulator) Accumulator {
	return Accumulator{Sum: a.Sum.Add(b.Sum), Count: a.Count + b.Count}
}

func (sumOp) Finalize(acc Accumulator) decimal.Decimal {
	return acc.Sum
}

// avgOp keeps sum and count, dividing only at finalize so that partition
// merges stay exact.
type avgOp struct{}

func (avgOp) Fold(acc Accumulator, inc decimal.Decimal) Accumulator {
	acc.Sum = acc.Sum.Add(inc)
	acc.Count++
	return acc
}

func (avgOp) Merge(a, b Accumulator) Accumulator {
	return Accumulator{Sum: a.Sum.Add(b.Sum), Count: a.Count + b.Count}
}

func (avgOp) Finalize(acc Accumulator) decimal.Decimal {
	if acc.Count == 0 {
		return decimal.Zero
	}
	return acc.Sum.Div(decimal.NewFromInt(acc.Count))
}
