package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/castmate/castmate-ai/internal/adapter/observability"
	"github.com/castmate/castmate-ai/internal/domain"
)

// StuckJobSweeper fails feedback jobs that stopped moving, for example when a
// worker died mid-analysis after the record was already committed.
type StuckJobSweeper struct {
	jobs       domain.JobRepository
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

// NewStuckJobSweeper returns nil when jobs is nil so callers can skip it.
func NewStuckJobSweeper(jobs domain.JobRepository, staleAfter, interval time.Duration) *StuckJobSweeper {
	if jobs == nil {
		return nil
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckJobSweeper{
		jobs:       jobs,
		staleAfter: staleAfter,
		interval:   interval,
		now:        time.Now,
	}
}

// Run sweeps once immediately, then every interval until ctx is done.
func (s *StuckJobSweeper) Run(ctx context.Context) {
	if s == nil || s.jobs == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck job sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce pages through stale jobs oldest first. A marked job leaves the
// stale set, so each page re-queries from the start.
func (s *StuckJobSweeper) sweepOnce(ctx context.Context) int {
	tracer := otel.Tracer("jobs.sweeper")
	ctx, span := tracer.Start(ctx, "StuckJobSweeper.sweepOnce")
	defer span.End()

	cutoff := s.now().Add(-s.staleAfter)
	const pageSize = 100
	msg := fmt.Sprintf("UPSTREAM_TIMEOUT: job did not finish within %s", s.staleAfter)
	span.SetAttributes(
		attribute.Int("jobs.page_size", pageSize),
		attribute.Float64("jobs.stale_after_seconds", s.staleAfter.Seconds()),
	)

	marked := 0
	for {
		jobs, err := s.jobs.ListStale(ctx, cutoff, pageSize)
		if err != nil {
			span.RecordError(err)
			slog.Error("stuck job sweep failed to list jobs", slog.Any("error", err))
			break
		}
		progressed := false
		for _, j := range jobs {
			if err := s.jobs.UpdateStatus(ctx, j.ID, domain.JobFailed, &msg); err != nil {
				span.RecordError(err)
				slog.Error("stuck job sweep failed to update job status", slog.String("job_id", j.ID), slog.Any("error", err))
				continue
			}
			slog.Warn("job marked failed by sweeper",
				slog.String("job_id", j.ID),
				slog.String("previous_status", string(j.Status)),
				slog.Time("updated_at", j.UpdatedAt))
			observability.AbandonJob("feedback")
			marked++
			progressed = true
		}
		// a short page is the last one; a page of failed updates would loop forever
		if len(jobs) < pageSize || !progressed {
			break
		}
	}

	span.SetAttributes(attribute.Int("jobs.total_marked_failed", marked))
	return marked
}
