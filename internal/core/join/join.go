// Package join merges two keyed summary tables on entity identity and
// computes the engagement/spend correlation over the joined view.
package join

import (
	"errors"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrInsufficientData is returned when a correlation is requested over fewer
// than 2 joined rows — the coefficient is undefined there. It is a
// distinguishable empty-result condition, not a crash.
var ErrInsufficientData = errors.New("insufficient data for correlation")

// Row is one joined entity. Only entity ids present in BOTH input summaries
// are joined: an entity with activity in a single store is excluded because
// the correlation is undefined for incomplete pairs. This is a documented
// design choice, not an accident — zero-filling the missing side would
// silently change the correlation's meaning.
type Row struct {
	EntityID   string          `json:"entity_id"`
	Engagement decimal.Decimal `json:"engagement"`
	Spend      decimal.Decimal `json:"spend"`
}

// Inner performs a hash inner join of the engagement and spend summaries:
// the smaller table is built into the lookup side, the larger probes it.
// Non-overlapping key sets yield an empty result, not an error. Output is
// ordered by ascending entity id for reproducibility.
func Inner(engagement, spend map[string]decimal.Decimal) []Row {
	build, probe := engagement, spend
	buildIsEngagement := true
	if len(spend) < len(engagement) {
		build, probe = spend, engagement
		buildIsEngagement = false
	}

	rows := make([]Row, 0, len(build))
	for key, probeVal := range probe {
		buildVal, ok := build[key]
		if !ok {
			continue
		}
		if buildIsEngagement {
			rows = append(rows, Row{EntityID: key, Engagement: buildVal, Spend: probeVal})
		} else {
			rows = append(rows, Row{EntityID: key, Engagement: probeVal, Spend: buildVal})
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].EntityID < rows[j].EntityID })
	return rows
}

// Correlate computes the Pearson correlation coefficient between the
// engagement and spend metrics of the joined rows.
//
// Fewer than 2 rows → ErrInsufficientData. Zero variance on either axis → 0
// (flat line, correlation undefined; 0 matches the upstream analytical
// convention). n=2 is valid and yields ±1 for any non-degenerate pair.
func Correlate(rows []Row) (float64, error) {
	n := len(rows)
	if n < 2 {
		return 0, ErrInsufficientData
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, row := range rows {
		xs[i] = row.Engagement.InexactFloat64()
		ys[i] = row.Spend.InexactFloat64()
	}

	meanX := mean(xs)
	meanY := mean(ys)

	var num, denX, denY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	if denX == 0 || denY == 0 {
		return 0, nil
	}
	return num / (math.Sqrt(denX) * math.Sqrt(denY)), nil
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
