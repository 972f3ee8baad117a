package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// Beginner opens transactions; *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CleanupService deletes jobs, feedback and clips past the retention window.
type CleanupService struct {
	DB            Beginner
	RetentionDays int
}

// NewCleanupService creates a new cleanup service. Non-positive retention means 90 days.
func NewCleanupService(db Beginner, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{DB: db, RetentionDays: retentionDays}
}

// CleanupOldData removes data older than the retention period in one transaction.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.RetentionDays)

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=cleanup.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	steps := []struct {
		name string
		sql  string
	}{
		{"feedback_results", `DELETE FROM feedback_results WHERE job_id IN (SELECT id FROM jobs WHERE created_at < $1)`},
		{"jobs", `DELETE FROM jobs WHERE created_at < $1`},
		{"clips", `DELETE FROM clips WHERE created_at < $1 AND id NOT IN (SELECT clip_id FROM jobs)`},
	}
	attrs := []any{slog.Time("cutoff", cutoff)}
	for _, st := range steps {
		tag, err := tx.Exec(ctx, st.sql, cutoff)
		if err != nil {
			return fmt.Errorf("op=cleanup.%s: %w", st.name, err)
		}
		attrs = append(attrs, slog.Int64("deleted_"+st.name, tag.RowsAffected()))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=cleanup.commit: %w", err)
	}
	slog.Info("data cleanup completed", attrs...)
	return nil
}

// RunPeriodic cleans once immediately, then on every tick until ctx is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
