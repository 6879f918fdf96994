package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/strata-lab/project-strata/internal/api/v1"
	httperr "github.com/strata-lab/project-strata/internal/core/errors"
	"github.com/strata-lab/project-strata/internal/storage/document"
)

const (
	msgReadBodyFailed  = "Failed to read request body"
	msgInvalidJSON     = "Invalid JSON body"
	msgPersistFailed   = "Failed to persist record"
	msgDuplicateRecord = "Record already exists"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestEntityHandler handles HTTP POST requests for business entities.
func (s *Service) IngestEntityHandler(c *gin.Context) {
	var ent v1.Entity
	payloadSize, ierr := s.parseRecord(c, &ent)
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := ent.Validate(); err != nil {
		slog.Warn("Entity validation failed", "error", err, "entity_id", ent.EntityID)
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    err.Error(),
		})
		return
	}

	slog.Info("Received entity",
		"entity_id", ent.EntityID,
		"kind", ent.Kind,
		"payload_size", payloadSize)

	if err := s.documents.SaveEntity(c.Request.Context(), &ent); err != nil {
		writeError(c, persistError(err, "entity", ent.EntityID))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// IngestTransactionHandler handles HTTP POST requests for transactions.
func (s *Service) IngestTransactionHandler(c *gin.Context) {
	var tx v1.Transaction
	payloadSize, ierr := s.parseRecord(c, &tx)
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := tx.Validate(); err != nil {
		slog.Warn("Transaction validation failed", "error", err, "transaction_id", tx.ID)
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    err.Error(),
		})
		return
	}

	slog.Info("Received transaction",
		"transaction_id", tx.ID,
		"customer_id", tx.CustomerID,
		"items", len(tx.Items),
		"payload_size", payloadSize)

	if err := s.documents.SaveTransaction(c.Request.Context(), &tx); err != nil {
		writeError(c, persistError(err, "transaction", tx.ID))
		return
	}

	// Record persisted. Analyses pick it up on their next run.
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "ingest_seq": tx.IngestSeq})
}

// IngestSessionHandler handles HTTP POST requests for session events.
// Session writes are idempotent, so there is no duplicate branch.
func (s *Service) IngestSessionHandler(c *gin.Context) {
	var ev v1.SessionEvent
	payloadSize, ierr := s.parseRecord(c, &ev)
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := ev.Validate(); err != nil {
		slog.Warn("Session event validation failed", "error", err, "session_id", ev.SessionID)
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    err.Error(),
		})
		return
	}

	slog.Info("Received session event",
		"customer_id", ev.CustomerID,
		"session_id", ev.SessionID,
		"payload_size", payloadSize)

	if err := s.sessions.PutEvent(c.Request.Context(), &ev); err != nil {
		slog.Error("Failed to persist session event", "error", err, "session_id", ev.SessionID)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// parseRecord reads the raw request body and binds it into the target record.
// Returns the raw payload size (used for structured logging upstream).
func (s *Service) parseRecord(c *gin.Context, target interface{}) (int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	return len(bodyBytes), nil
}

// persistError maps a document store write failure to the HTTP error shape.
func persistError(err error, recordKind, recordID string) *ingestionError {
	if errors.Is(err, document.ErrDuplicate) {
		slog.Info("Duplicate record rejected", "kind", recordKind, "id", recordID)
		return &ingestionError{
			statusCode: http.StatusConflict,
			errorType:  httperr.HttpDuplicateRecordError,
			message:    msgDuplicateRecord,
		}
	}

	slog.Error("Failed to persist record", "error", err, "kind", recordKind, "id", recordID)
	return &ingestionError{
		statusCode: http.StatusInternalServerError,
		errorType:  httperr.HttpInternalError,
		message:    msgPersistFailed,
	}
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
