package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/strata-lab/project-strata/internal/pipeline"
)

func sampleResults() []pipeline.Result {
	correlation := 1.0
	return []pipeline.Result{
		{
			Analysis: "top_spenders",
			RunID:    "run-1",
			Status:   pipeline.StatusSuccess,
			Columns:  []string{"customer_id", "total_spent"},
			Rows: [][]string{
				{"cust-a", "30"},
				{"cust-b", "5"},
			},
			Fingerprint: "default",
		},
		{
			Analysis:    "engagement_vs_spend",
			RunID:       "run-2",
			Status:      pipeline.StatusSuccess,
			Columns:     []string{"customer_id", "sessions_count", "total_spent"},
			Rows:        [][]string{{"cust-a", "10", "30"}},
			Correlation: &correlation,
			Fingerprint: "default",
		},
		{
			Analysis: "bought_together",
			RunID:    "run-3",
			Status:   pipeline.StatusFailed,
			Error:    "bought_together: source unavailable",
		},
	}
}

func TestEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("writes csv per non-failed analysis", func(t *testing.T) {
		dir := t.TempDir()
		exporter := New(dir, WithWorkbook(false))

		require.NoError(t, exporter.Emit(ctx, sampleResults()))

		f, err := os.Open(filepath.Join(dir, "top_spenders.csv"))
		require.NoError(t, err)
		defer f.Close()

		records, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		require.Equal(t, [][]string{
			{"customer_id", "total_spent"},
			{"cust-a", "30"},
			{"cust-b", "5"},
		}, records)

		_, err = os.Stat(filepath.Join(dir, "bought_together.csv"))
		require.True(t, os.IsNotExist(err))
	})

	t.Run("writes workbook with summary and data sheets", func(t *testing.T) {
		dir := t.TempDir()
		exporter := New(dir, WithCSV(false))

		require.NoError(t, exporter.Emit(ctx, sampleResults()))

		wb, err := excelize.OpenFile(filepath.Join(dir, workbookName))
		require.NoError(t, err)
		defer wb.Close()

		sheets := wb.GetSheetList()
		require.Contains(t, sheets, "summary")
		require.Contains(t, sheets, "top_spenders")
		require.Contains(t, sheets, "engagement_vs_spend")
		require.NotContains(t, sheets, "bought_together")

		rows, err := wb.GetRows("top_spenders")
		require.NoError(t, err)
		require.Equal(t, [][]string{
			{"customer_id", "total_spent"},
			{"cust-a", "30"},
			{"cust-b", "5"},
		}, rows)

		summary, err := wb.GetRows("summary")
		require.NoError(t, err)
		require.Len(t, summary, 4) // header + 3 analyses
		require.Equal(t, "bought_together", summary[3][0])
		require.Equal(t, "failed", summary[3][2])
	})

	t.Run("re-emitting overwrites previous files", func(t *testing.T) {
		dir := t.TempDir()
		exporter := New(dir, WithWorkbook(false))

		results := sampleResults()
		require.NoError(t, exporter.Emit(ctx, results))

		results[0].Rows = [][]string{{"cust-c", "100"}}
		require.NoError(t, exporter.Emit(ctx, results))

		f, err := os.Open(filepath.Join(dir, "top_spenders.csv"))
		require.NoError(t, err)
		defer f.Close()

		records, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		require.Equal(t, [][]string{
			{"customer_id", "total_spent"},
			{"cust-c", "100"},
		}, records)
	})

	t.Run("cancelled context aborts the emit", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		exporter := New(t.TempDir())
		require.Error(t, exporter.Emit(cancelled, sampleResults()))
	})
}
