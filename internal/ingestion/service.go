// Package ingestion accepts business records over HTTP and from bulk JSON
// files, routing entities and transactions to the document store and session
// events to the session log.
package ingestion

import (
	"context"

	"github.com/gin-gonic/gin"

	v1 "github.com/strata-lab/project-strata/internal/api/v1"
)

// DocumentWriter is the write side of the document store.
type DocumentWriter interface {
	SaveEntity(ctx context.Context, ent *v1.Entity) error
	SaveTransaction(ctx context.Context, tx *v1.Transaction) error
}

// SessionWriter is the write side of the session log.
type SessionWriter interface {
	PutEvent(ctx context.Context, ev *v1.SessionEvent) error
}

type Service struct {
	documents        DocumentWriter
	sessions         SessionWriter
	maxBodySizeBytes int
}

func NewService(documents DocumentWriter, sessions SessionWriter, maxBodySizeMB int) *Service {
	if documents == nil {
		panic("ingestion: document writer must not be nil")
	}
	if sessions == nil {
		panic("ingestion: session writer must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		documents:        documents,
		sessions:         sessions,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/entities", s.IngestEntityHandler)
	r.POST("/v1/transactions", s.IngestTransactionHandler)
	r.POST("/v1/sessions", s.IngestSessionHandler)
}
