package source

import (
	"context"

	v1 "github.com/strata-lab/project-strata/internal/api/v1"
)

// DocumentStore is the document-query RecordSource variant: business entities
// and transactions behind conjunctive field filters. Backed by the document
// store adapter; the engine only ever reads through it.
type DocumentStore interface {
	OpenEntities(ctx context.Context, spec QuerySpec) (Cursor[v1.Entity], error)
	OpenTransactions(ctx context.Context, spec QuerySpec) (Cursor[v1.Transaction], error)
}

// SessionStore is the range-scan RecordSource variant: session events in
// composite row-key order (customer_id, started_at, session_id), bounded by
// key prefix and/or time range without loading the full dataset.
type SessionStore interface {
	OpenSessions(ctx context.Context, spec QuerySpec) (Cursor[v1.SessionEvent], error)
}
