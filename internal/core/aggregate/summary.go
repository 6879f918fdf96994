package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SummaryRow is one group's metric after aggregation. Group keys are unique
// within a table; groups arise only from observed records, never zero-filled.
type SummaryRow struct {
	GroupKey string          `json:"group_key"`
	Metric   string          `json:"metric"`
	Value    decimal.Decimal `json:"value"`
}

// Table is an aggregation result ordered by ascending group key, which makes
// repeated runs over the same snapshot byte-identical.
type Table struct {
	Rows []SummaryRow

	// SkippedRecords counts records the source could not decode during the
	// pass. Surfaced in result metadata, never silently dropped.
	SkippedRecords int
}

// ToMap returns group key -> value. Rows stays the canonical ordered form.
func (t Table) ToMap() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(t.Rows))
	for _, row := range t.Rows {
		m[row.GroupKey] = row.Value
	}
	return m
}

// TopK returns the k rows with the greatest metric value, descending, ties
// broken by ascending group key. If fewer than k groups exist, all are
// returned — never an error.
func TopK(rows []SummaryRow, k int) []SummaryRow {
	if k < 0 {
		k = 0
	}
	out := make([]SummaryRow, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Value.Equal(out[j].Value) {
			return out[i].Value.GreaterThan(out[j].Value)
		}
		return out[i].GroupKey < out[j].GroupKey
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func tableFromAccumulators(metric string, op Operator, accs map[string]Accumulator, skipped int) Table {
	rows := make([]SummaryRow, 0, len(accs))
	for key, acc := range accs {
		rows = append(rows, SummaryRow{GroupKey: key, Metric: metric, Value: op.Finalize(acc)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].GroupKey < rows[j].GroupKey })
	return Table{Rows: rows, SkippedRecords: skipped}
}
