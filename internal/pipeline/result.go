package pipeline

import (
	"time"
)

// Status classifies an analysis run outcome.
type Status string

const (
	// StatusSuccess: every record decoded, all stages completed.
	StatusSuccess Status = "success"

	// StatusPartial: the run completed but skipped undecodable records or
	// oversized baskets. The skip counts say how many.
	StatusPartial Status = "partial"

	// StatusFailed: the analysis aborted (source unavailable, insufficient
	// data). Only this analysis is affected; sibling analyses keep running.
	StatusFailed Status = "failed"
)

// Result is the outcome of one analysis run. Rows are plain structured
// records — serialization and export are collaborator concerns.
type Result struct {
	Analysis string `json:"analysis"`
	RunID    string `json:"run_id"`
	Status   Status `json:"status"`

	// Columns and Rows form the result set. Row ordering is deterministic:
	// the same input snapshot always produces byte-identical rows.
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`

	// Correlation is set only by engagement_vs_spend.
	Correlation *float64 `json:"correlation,omitempty"`

	// SkippedRecords counts records skipped for schema mismatches across the
	// run's scans. SkippedBaskets counts baskets dropped as oversized.
	SkippedRecords int `json:"skipped_records"`
	SkippedBaskets int `json:"skipped_baskets,omitempty"`

	// Error describes the failure when Status is failed. Cause carries the
	// underlying error so callers can branch on the failure class.
	Error string `json:"error,omitempty"`
	Cause error  `json:"-"`

	// Fingerprint identifies the analysis definition that produced this
	// result ("default" or the SHA-256 of the definition file).
	Fingerprint string `json:"fingerprint"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// finalize fills the status from the skip counters unless the run already
// failed.
func (r *Result) finalize() {
	if r.Status == StatusFailed {
		return
	}
	if r.SkippedRecords > 0 || r.SkippedBaskets > 0 {
		r.Status = StatusPartial
		return
	}
	r.Status = StatusSuccess
}
