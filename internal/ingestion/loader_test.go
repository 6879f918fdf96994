package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-lab/project-strata/internal/storage/document"
)

func writeSeedFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("loads all record kinds", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "entities.json", `[
			{"entity_id":"prod-1","kind":"product","category":"electronics","base_price":"20"}
		]`)
		writeSeedFile(t, dir, "transactions.json", `[
			{"transaction_id":"tx-1","customer_id":"cust-a","occurred_at":"2026-03-01T12:00:00Z",
			 "items":[{"product_id":"prod-1","quantity":1,"unit_price":"20"}]}
		]`)
		writeSeedFile(t, dir, "sessions_1.json", `[
			{"customer_id":"cust-a","session_id":"s1","event_type":"page_view",
			 "started_at":"2026-03-01T09:00:00Z","duration_seconds":120}
		]`)
		writeSeedFile(t, dir, "sessions_2.json", `[
			{"customer_id":"cust-b","session_id":"s2","event_type":"page_view",
			 "started_at":"2026-03-01T10:00:00Z","duration_seconds":60}
		]`)

		docs := &fakeDocWriter{}
		sessions := &fakeSessionWriter{}
		stats, err := NewLoader(docs, sessions).Load(ctx, dir)
		require.NoError(t, err)

		require.Equal(t, 1, stats.Entities)
		require.Equal(t, 1, stats.Transactions)
		require.Equal(t, 2, stats.Sessions)
		require.Zero(t, stats.Duplicates)
		require.Zero(t, stats.Invalid)
	})

	t.Run("missing files load nothing", func(t *testing.T) {
		stats, err := NewLoader(&fakeDocWriter{}, &fakeSessionWriter{}).Load(ctx, t.TempDir())
		require.NoError(t, err)
		require.Equal(t, LoadStats{}, stats)
	})

	t.Run("assigns ids to transactions without one", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "transactions.json", `[
			{"customer_id":"cust-a","occurred_at":"2026-03-01T12:00:00Z",
			 "items":[{"product_id":"prod-1","quantity":1,"unit_price":"5"}]}
		]`)

		docs := &fakeDocWriter{}
		stats, err := NewLoader(docs, &fakeSessionWriter{}).Load(ctx, dir)
		require.NoError(t, err)
		require.Equal(t, 1, stats.Transactions)
		require.NotEmpty(t, docs.transactions[0].ID)
	})

	t.Run("duplicates are counted not fatal", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "entities.json", `[
			{"entity_id":"prod-1","kind":"product","category":"electronics","base_price":"20"}
		]`)

		docs := &fakeDocWriter{saveErr: document.ErrDuplicate}
		stats, err := NewLoader(docs, &fakeSessionWriter{}).Load(ctx, dir)
		require.NoError(t, err)
		require.Equal(t, 1, stats.Duplicates)
		require.Zero(t, stats.Entities)
	})

	t.Run("invalid records are skipped and counted", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "entities.json", `[
			{"entity_id":"","kind":"product"},
			{"entity_id":"prod-1","kind":"product","category":"books","base_price":"5"}
		]`)

		docs := &fakeDocWriter{}
		stats, err := NewLoader(docs, &fakeSessionWriter{}).Load(ctx, dir)
		require.NoError(t, err)
		require.Equal(t, 1, stats.Invalid)
		require.Equal(t, 1, stats.Entities)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "transactions.json", `{not an array`)

		_, err := NewLoader(&fakeDocWriter{}, &fakeSessionWriter{}).Load(ctx, dir)
		require.Error(t, err)
	})
}
