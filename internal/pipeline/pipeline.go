// Package pipeline orchestrates the canonical analyses over the two record
// sources: document-store aggregations, basket co-occurrence, and the
// cross-store join. Each analysis is an independent, side-effect-free batch
// computation; the pipeline is the only place results are assembled and the
// only component allowed to emit them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	v1 "github.com/strata-lab/project-strata/internal/api/v1"
	"github.com/strata-lab/project-strata/internal/core/aggregate"
	"github.com/strata-lab/project-strata/internal/core/analysis"
	"github.com/strata-lab/project-strata/internal/core/basket"
	"github.com/strata-lab/project-strata/internal/core/join"
	"github.com/strata-lab/project-strata/internal/core/source"
)

// ErrAnalysisDisabled is returned by RunAnalysis for an analysis whose
// definition is disabled. Callers classify it with errors.Is.
var ErrAnalysisDisabled = errors.New("analysis is disabled")

// Pipeline wires the record sources to the analyses. It reads through the
// store interfaces only — the engine never mutates the backing stores.
type Pipeline struct {
	documents source.DocumentStore
	sessions  source.SessionStore
	defs      analysis.Repository
	aggOpts   aggregate.Options

	nowFn    func() time.Time
	newRunID func() string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithAggregateOptions sets partition and worker counts for the aggregation
// passes.
func WithAggregateOptions(opts aggregate.Options) Option {
	return func(p *Pipeline) { p.aggOpts = opts }
}

// New creates a pipeline over the two stores.
func New(documents source.DocumentStore, sessions source.SessionStore, defs analysis.Repository, opts ...Option) *Pipeline {
	p := &Pipeline{
		documents: documents,
		sessions:  sessions,
		defs:      defs,
		aggOpts:   aggregate.DefaultOptions(),
		nowFn:     func() time.Time { return time.Now().UTC() },
		newRunID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunAnalysis executes one canonical analysis by name. The returned error is
// non-nil only for requests that never ran (unknown or disabled analysis);
// run failures are reported in the Result with the analysis name attached.
func (p *Pipeline) RunAnalysis(ctx context.Context, name string) (Result, error) {
	def, err := p.defs.Get(name)
	if err != nil {
		return Result{}, err
	}
	if !def.Enabled {
		return Result{}, fmt.Errorf("%w: %s", ErrAnalysisDisabled, name)
	}

	res := Result{
		Analysis:    def.Name,
		RunID:       p.newRunID(),
		Fingerprint: def.Fingerprint,
		StartedAt:   p.nowFn(),
	}

	var runErr error
	switch def.Name {
	case analysis.RevenueByCategory:
		runErr = p.revenueByCategory(ctx, def, &res)
	case analysis.TopSpenders:
		runErr = p.topSpenders(ctx, def, &res)
	case analysis.BoughtTogether:
		runErr = p.boughtTogether(ctx, def, &res)
	case analysis.EngagementVsSpend:
		runErr = p.engagementVsSpend(ctx, def, &res)
	case analysis.EngagementSegments:
		runErr = p.engagementSegments(ctx, def, &res)
	default:
		return Result{}, fmt.Errorf("unknown analysis %q", def.Name)
	}

	if runErr != nil {
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("%s: %v", def.Name, runErr)
		res.Cause = runErr
		slog.Error("[Pipeline] Analysis failed", "analysis", def.Name, "run_id", res.RunID, "error", runErr)
	}
	res.finalize()
	res.Duration = p.nowFn().Sub(res.StartedAt)

	slog.Info("[Pipeline] Analysis complete",
		"analysis", def.Name,
		"run_id", res.RunID,
		"status", res.Status,
		"rows", len(res.Rows),
		"skipped_records", res.SkippedRecords,
		"duration", res.Duration,
	)
	return res, nil
}

// RunAll executes every enabled analysis concurrently. Analyses are
// share-nothing and order-independent, so a failure in one never aborts the
// others — each goroutine reports through its own Result.
func (p *Pipeline) RunAll(ctx context.Context) []Result {
	var enabled []string
	for _, def := range p.defs.All() {
		if def.Enabled {
			enabled = append(enabled, def.Name)
		}
	}

	results := make([]Result, len(enabled))
	var g errgroup.Group
	for i, name := range enabled {
		g.Go(func() error {
			res, err := p.RunAnalysis(ctx, name)
			if err != nil {
				// Unknown/disabled cannot happen for defs.All entries, but a
				// failure here must still not poison sibling analyses.
				res = Result{Analysis: name, Status: StatusFailed, Error: err.Error(), StartedAt: p.nowFn()}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return results
}

// --- analysis 1: revenue by category ---

func (p *Pipeline) revenueByCategory(ctx context.Context, def analysis.Definition, res *Result) error {
	categories, skipped, err := p.productCategories(ctx)
	if err != nil {
		return err
	}
	res.SkippedRecords += skipped

	txCur, err := p.documents.OpenTransactions(ctx, source.QuerySpec{})
	if err != nil {
		return err
	}

	items := flattenItems(txCur, func(productID string) string { return categories[productID] })
	table, err := aggregate.RunPartitioned(ctx, items, aggregate.Spec[txItem]{
		Metric:   "revenue",
		Operator: aggregate.OpSum,
		GroupBy:  func(it txItem) string { return it.Category },
		Value:    func(it txItem) decimal.Decimal { return it.Subtotal },
	}, p.aggOpts)
	if err != nil {
		return err
	}
	res.SkippedRecords += table.SkippedRecords

	// Revenue descending, category ascending on ties.
	ordered := aggregate.TopK(table.Rows, len(table.Rows))
	res.Columns = []string{"category_id", "revenue"}
	for _, row := range ordered {
		res.Rows = append(res.Rows, []string{row.GroupKey, row.Value.String()})
	}
	return nil
}

// productCategories loads the product catalog into a product -> category map.
// Bounded: the catalog is the small entity population, not the event logs.
func (p *Pipeline) productCategories(ctx context.Context) (map[string]string, int, error) {
	cur, err := p.documents.OpenEntities(ctx, source.QuerySpec{
		Filters:    []source.Filter{{Field: "kind", Op: "=", Value: v1.KindProduct}},
		Projection: []string{"entity_id", "category"},
	})
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close()

	categories := make(map[string]string)
	for {
		ent, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			break
		}
		categories[ent.EntityID] = ent.Category
	}
	return categories, cur.Skipped(), nil
}

// --- analysis 2: top spenders ---

func (p *Pipeline) topSpenders(ctx context.Context, def analysis.Definition, res *Result) error {
	table, err := p.spendByCustomer(ctx)
	if err != nil {
		return err
	}
	res.SkippedRecords += table.SkippedRecords

	res.Columns = []string{"customer_id", "total_spent"}
	for _, row := range aggregate.TopK(table.Rows, def.TopK) {
		res.Rows = append(res.Rows, []string{row.GroupKey, row.Value.String()})
	}
	return nil
}

// --- analysis 3: frequently bought together ---

func (p *Pipeline) boughtTogether(ctx context.Context, def analysis.Definition, res *Result) error {
	txCur, err := p.documents.OpenTransactions(ctx, source.QuerySpec{})
	if err != nil {
		return err
	}

	analyzer := basket.Analyzer{MaxBasketSize: def.MaxBasketSize}
	coRes, err := analyzer.PairwiseCooccurrence(ctx, txCur)
	if err != nil {
		return err
	}
	res.SkippedRecords += coRes.SkippedRecords
	res.SkippedBaskets += coRes.SkippedBaskets

	pairs := coRes.Pairs
	if len(pairs) > def.MaxPairs {
		pairs = pairs[:def.MaxPairs]
	}
	res.Columns = []string{"product_a", "product_b", "co_purchase_count"}
	for _, pair := range pairs {
		res.Rows = append(res.Rows, []string{pair.ProductA, pair.ProductB, strconv.FormatInt(pair.Count, 10)})
	}
	return nil
}

// --- analysis 4: engagement vs spend ---

func (p *Pipeline) engagementVsSpend(ctx context.Context, def analysis.Definition, res *Result) error {
	engagement, err := p.sessionMetric(ctx, "sessions_count", aggregate.OpCount)
	if err != nil {
		return err
	}
	res.SkippedRecords += engagement.SkippedRecords

	spend, err := p.spendByCustomer(ctx)
	if err != nil {
		return err
	}
	res.SkippedRecords += spend.SkippedRecords

	rows := join.Inner(engagement.ToMap(), spend.ToMap())
	res.Columns = []string{"customer_id", "sessions_count", "total_spent"}
	for _, row := range rows {
		res.Rows = append(res.Rows, []string{row.EntityID, row.Engagement.String(), row.Spend.String()})
	}

	r, err := join.Correlate(rows)
	if err != nil {
		// The joined view is still a valid (possibly empty) result set; only
		// the coefficient is undefined.
		return err
	}
	res.Correlation = &r
	return nil
}

// --- analysis 5: engagement segments ---

func (p *Pipeline) engagementSegments(ctx context.Context, def analysis.Definition, res *Result) error {
	sessions, err := p.sessionMetric(ctx, "sessions_count", aggregate.OpCount)
	if err != nil {
		return err
	}
	res.SkippedRecords += sessions.SkippedRecords

	avgDuration, err := p.sessionDurationAvg(ctx)
	if err != nil {
		return err
	}
	res.SkippedRecords += avgDuration.SkippedRecords

	spend, err := p.spendByCustomer(ctx)
	if err != nil {
		return err
	}
	res.SkippedRecords += spend.SkippedRecords

	joined := join.Inner(sessions.ToMap(), spend.ToMap())
	durations := avgDuration.ToMap()

	type segment struct {
		customers int64
		spendSum  decimal.Decimal
	}
	segments := map[string]*segment{
		"low":    {},
		"medium": {},
		"high":   {},
	}
	for _, row := range joined {
		score := engagementScore(row.Engagement, durations[row.EntityID])
		name := "medium"
		switch {
		case score < def.SegmentLow:
			name = "low"
		case score >= def.SegmentHigh:
			name = "high"
		}
		seg := segments[name]
		seg.customers++
		seg.spendSum = seg.spendSum.Add(row.Spend)
	}

	res.Columns = []string{"segment", "customers", "avg_spend"}
	for _, name := range []string{"low", "medium", "high"} {
		seg := segments[name]
		avg := decimal.Zero
		if seg.customers > 0 {
			avg = seg.spendSum.Div(decimal.NewFromInt(seg.customers))
		}
		res.Rows = append(res.Rows, []string{name, strconv.FormatInt(seg.customers, 10), avg.StringFixed(2)})
	}
	return nil
}

// engagementScore weighs session count by normalized session length:
// sessions x (1 + avg_duration/600). A 10-minute average doubles the weight.
func engagementScore(sessions decimal.Decimal, avgDurationSeconds decimal.Decimal) float64 {
	return sessions.InexactFloat64() * (1 + avgDurationSeconds.InexactFloat64()/600)
}

// --- shared passes ---

func (p *Pipeline) spendByCustomer(ctx context.Context) (aggregate.Table, error) {
	cur, err := p.documents.OpenTransactions(ctx, source.QuerySpec{})
	if err != nil {
		return aggregate.Table{}, err
	}
	return aggregate.RunPartitioned(ctx, cur, aggregate.Spec[v1.Transaction]{
		Metric:   "total_spent",
		Operator: aggregate.OpSum,
		GroupBy:  func(tx v1.Transaction) string { return tx.CustomerID },
		Value:    func(tx v1.Transaction) decimal.Decimal { return tx.Total() },
	}, p.aggOpts)
}

func (p *Pipeline) sessionMetric(ctx context.Context, metric, op string) (aggregate.Table, error) {
	cur, err := p.sessions.OpenSessions(ctx, source.QuerySpec{})
	if err != nil {
		return aggregate.Table{}, err
	}
	return aggregate.RunPartitioned(ctx, cur, aggregate.Spec[v1.SessionEvent]{
		Metric:   metric,
		Operator: op,
		GroupBy:  func(evt v1.SessionEvent) string { return evt.CustomerID },
	}, p.aggOpts)
}

func (p *Pipeline) sessionDurationAvg(ctx context.Context) (aggregate.Table, error) {
	cur, err := p.sessions.OpenSessions(ctx, source.QuerySpec{})
	if err != nil {
		return aggregate.Table{}, err
	}
	return aggregate.RunPartitioned(ctx, cur, aggregate.Spec[v1.SessionEvent]{
		Metric:   "avg_duration_seconds",
		Operator: aggregate.OpAvg,
		GroupBy:  func(evt v1.SessionEvent) string { return evt.CustomerID },
		Value:    func(evt v1.SessionEvent) decimal.Decimal { return decimal.NewFromInt(evt.DurationSeconds) },
	}, p.aggOpts)
}
