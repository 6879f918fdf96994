// Package export persists pipeline results as per-analysis CSV files and a
// combined XLSX workbook. It is the production Emitter behind the scheduler.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/strata-lab/project-strata/internal/pipeline"
)

const workbookName = "analytics.xlsx"

// Exporter writes result sets to an output directory. Each emit overwrites
// the previous files, so the directory always holds the latest run.
type Exporter struct {
	dir      string
	writeCSV bool
	writeXLS bool
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithCSV toggles per-analysis CSV files.
func WithCSV(enabled bool) Option {
	return func(e *Exporter) { e.writeCSV = enabled }
}

// WithWorkbook toggles the combined XLSX workbook.
func WithWorkbook(enabled bool) Option {
	return func(e *Exporter) { e.writeXLS = enabled }
}

// New creates an exporter targeting dir. The directory is created on first
// emit, not here, so a misconfigured path fails at run time with context.
func New(dir string, opts ...Option) *Exporter {
	e := &Exporter{dir: dir, writeCSV: true, writeXLS: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit implements pipeline.Emitter. Failed analyses are logged and skipped;
// one bad analysis never blocks exporting the others.
func (e *Exporter) Emit(ctx context.Context, results []pipeline.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", e.dir, err)
	}

	exported := 0
	for _, res := range results {
		if res.Status == pipeline.StatusFailed {
			slog.Warn("[Export] Skipping failed analysis", "analysis", res.Analysis, "error", res.Error)
			continue
		}
		if e.writeCSV {
			if err := e.writeCSVFile(res); err != nil {
				return err
			}
		}
		exported++
	}

	if e.writeXLS {
		if err := e.writeWorkbook(results); err != nil {
			return err
		}
	}

	slog.Info("[Export] Results exported", "dir", e.dir, "analyses", exported)
	return nil
}

// writeCSVFile writes one analysis as <dir>/<analysis>.csv with a header row.
func (e *Exporter) writeCSVFile(res pipeline.Result) error {
	path := filepath.Join(e.dir, res.Analysis+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(res.Columns); err != nil {
		return fmt.Errorf("failed to write csv header for %s: %w", res.Analysis, err)
	}
	for _, row := range res.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", res.Analysis, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv for %s: %w", res.Analysis, err)
	}
	return nil
}

// writeWorkbook writes all results into one XLSX file: a summary sheet with
// run metadata plus one sheet per non-failed analysis.
func (e *Exporter) writeWorkbook(results []pipeline.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename summary sheet: %w", err)
	}

	summaryHeader := []interface{}{"analysis", "run_id", "status", "rows", "skipped_records", "skipped_baskets", "correlation", "fingerprint"}
	if err := setRow(f, summarySheet, 1, summaryHeader); err != nil {
		return err
	}

	for i, res := range results {
		correlation := ""
		if res.Correlation != nil {
			correlation = fmt.Sprintf("%.6f", *res.Correlation)
		}
		summary := []interface{}{
			res.Analysis, res.RunID, string(res.Status), len(res.Rows),
			res.SkippedRecords, res.SkippedBaskets, correlation, res.Fingerprint,
		}
		if err := setRow(f, summarySheet, i+2, summary); err != nil {
			return err
		}

		if res.Status == pipeline.StatusFailed {
			continue
		}

		if _, err := f.NewSheet(res.Analysis); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", res.Analysis, err)
		}
		header := make([]interface{}, len(res.Columns))
		for c, col := range res.Columns {
			header[c] = col
		}
		if err := setRow(f, res.Analysis, 1, header); err != nil {
			return err
		}
		for r, row := range res.Rows {
			cells := make([]interface{}, len(row))
			for c, cell := range row {
				cells[c] = cell
			}
			if err := setRow(f, res.Analysis, r+2, cells); err != nil {
				return err
			}
		}
	}

	path := filepath.Join(e.dir, workbookName)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to compute cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d on sheet %s: %w", row, sheet, err)
	}
	return nil
}
