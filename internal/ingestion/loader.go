package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	v1 "github.com/strata-lab/project-strata/internal/api/v1"
	"github.com/strata-lab/project-strata/internal/storage/document"
)

// Bulk load file names. Session files are sharded (sessions_1.json,
// sessions_2.json, ...) so large exports can be split.
const (
	entitiesFile     = "entities.json"
	transactionsFile = "transactions.json"
	sessionsPattern  = "sessions_*.json"
)

// LoadStats summarizes one bulk load.
type LoadStats struct {
	Entities     int
	Transactions int
	Sessions     int
	Duplicates   int
	Invalid      int
}

// Loader ingests record batches from JSON files in a seed directory.
// Re-running a load over the same directory is safe: duplicates are counted
// and skipped, not treated as failures.
type Loader struct {
	documents DocumentWriter
	sessions  SessionWriter
}

func NewLoader(documents DocumentWriter, sessions SessionWriter) *Loader {
	return &Loader{documents: documents, sessions: sessions}
}

// Load reads every recognized file under dir and ingests its records.
// Missing files are fine; a directory with no recognized files loads nothing.
func (l *Loader) Load(ctx context.Context, dir string) (LoadStats, error) {
	var stats LoadStats

	if err := l.loadEntities(ctx, filepath.Join(dir, entitiesFile), &stats); err != nil {
		return stats, err
	}
	if err := l.loadTransactions(ctx, filepath.Join(dir, transactionsFile), &stats); err != nil {
		return stats, err
	}

	sessionFiles, err := filepath.Glob(filepath.Join(dir, sessionsPattern))
	if err != nil {
		return stats, fmt.Errorf("failed to list session files: %w", err)
	}
	sort.Strings(sessionFiles)
	for _, path := range sessionFiles {
		if err := l.loadSessions(ctx, path, &stats); err != nil {
			return stats, err
		}
	}

	slog.Info("[Loader] Bulk load complete",
		"dir", dir,
		"entities", stats.Entities,
		"transactions", stats.Transactions,
		"sessions", stats.Sessions,
		"duplicates", stats.Duplicates,
		"invalid", stats.Invalid)
	return stats, nil
}

func (l *Loader) loadEntities(ctx context.Context, path string, stats *LoadStats) error {
	var entities []v1.Entity
	ok, err := readRecords(path, &entities)
	if err != nil || !ok {
		return err
	}

	for i := range entities {
		ent := &entities[i]
		if err := ent.Validate(); err != nil {
			stats.Invalid++
			slog.Warn("[Loader] Skipping invalid entity", "entity_id", ent.EntityID, "error", err)
			continue
		}
		switch err := l.documents.SaveEntity(ctx, ent); {
		case err == nil:
			stats.Entities++
		case errors.Is(err, document.ErrDuplicate):
			stats.Duplicates++
		default:
			return fmt.Errorf("failed to load entity %s: %w", ent.EntityID, err)
		}
	}
	return nil
}

func (l *Loader) loadTransactions(ctx context.Context, path string, stats *LoadStats) error {
	var transactions []v1.Transaction
	ok, err := readRecords(path, &transactions)
	if err != nil || !ok {
		return err
	}

	for i := range transactions {
		tx := &transactions[i]
		// Seed exports may omit transaction ids; assign them here.
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		if err := tx.Validate(); err != nil {
			stats.Invalid++
			slog.Warn("[Loader] Skipping invalid transaction", "transaction_id", tx.ID, "error", err)
			continue
		}
		switch err := l.documents.SaveTransaction(ctx, tx); {
		case err == nil:
			stats.Transactions++
		case errors.Is(err, document.ErrDuplicate):
			stats.Duplicates++
		default:
			return fmt.Errorf("failed to load transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

func (l *Loader) loadSessions(ctx context.Context, path string, stats *LoadStats) error {
	var events []v1.SessionEvent
	ok, err := readRecords(path, &events)
	if err != nil || !ok {
		return err
	}

	for i := range events {
		ev := &events[i]
		if err := ev.Validate(); err != nil {
			stats.Invalid++
			slog.Warn("[Loader] Skipping invalid session event", "session_id", ev.SessionID, "error", err)
			continue
		}
		if err := l.sessions.PutEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to load session event %s: %w", ev.SessionID, err)
		}
		stats.Sessions++
	}
	return nil
}

// readRecords decodes a JSON array file into target. Returns false with no
// error when the file does not exist.
func readRecords(path string, target interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}
