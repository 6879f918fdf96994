package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Emitter receives the result sets of a pipeline run. The exporter is the
// production implementation; the pipeline itself never persists anything.
type Emitter interface {
	Emit(ctx context.Context, results []Result) error
}

// Scheduler runs the full pipeline on a periodic interval. It is stateless:
// each tick independently re-reads the stores, so a run always reflects the
// current snapshot.
type Scheduler struct {
	interval time.Duration
	pipeline *Pipeline
	emitter  Emitter
}

// NewScheduler creates a periodic runner for the pipeline.
func NewScheduler(interval time.Duration, p *Pipeline, emitter Emitter) *Scheduler {
	return &Scheduler{interval: interval, pipeline: p, emitter: emitter}
}

// Start begins periodic runs. The first run happens immediately; runs then
// repeat every interval until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting pipeline scheduler", "interval", s.interval)

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	started := time.Now()
	results := s.pipeline.RunAll(ctx)

	failed := 0
	for _, res := range results {
		if res.Status == StatusFailed {
			failed++
		}
	}
	slog.Info("[Scheduler] Pipeline run complete",
		"analyses", len(results),
		"failed", failed,
		"duration", time.Since(started),
	)

	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, results); err != nil {
		slog.Error("[Scheduler] Result emission failed", "error", err)
	}
}
