package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/castmate/castmate-ai/internal/domain"
)

// FeedbackRepo persists parsed training feedback as JSONB keyed by job id.
type FeedbackRepo struct{ Pool PgxPool }

// NewFeedbackRepo constructs a FeedbackRepo with the given pool.
func NewFeedbackRepo(p PgxPool) *FeedbackRepo { return &FeedbackRepo{Pool: p} }

// Upsert inserts or replaces the feedback of a job.
func (r *FeedbackRepo) Upsert(ctx domain.Context, rec domain.FeedbackRecord) error {
	ctx, span := startSpan(ctx, "feedback_results", "Upsert", "INSERT")
	defer span.End()
	body, err := json.Marshal(rec.Feedback)
	if err != nil {
		return fmt.Errorf("op=feedback.upsert: %w", err)
	}
	q := `INSERT INTO feedback_results (job_id, outcome, global_score, feedback, created_at)
	VALUES ($1,$2,$3,$4,$5)
	ON CONFLICT (job_id)
	DO UPDATE SET outcome=EXCLUDED.outcome, global_score=EXCLUDED.global_score, feedback=EXCLUDED.feedback`
	if _, err := r.Pool.Exec(ctx, q, rec.JobID, rec.Outcome, rec.Feedback.GlobalScore, body, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=feedback.upsert: %w", err)
	}
	return nil
}

// GetByJobID loads the feedback stored for a job.
func (r *FeedbackRepo) GetByJobID(ctx domain.Context, jobID string) (domain.FeedbackRecord, error) {
	ctx, span := startSpan(ctx, "feedback_results", "GetByJobID", "SELECT")
	defer span.End()
	q := `SELECT job_id, outcome, feedback, created_at FROM feedback_results WHERE job_id=$1`
	var rec domain.FeedbackRecord
	var body []byte
	if err := r.Pool.QueryRow(ctx, q, jobID).Scan(&rec.JobID, &rec.Outcome, &body, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FeedbackRecord{}, fmt.Errorf("op=feedback.get: %w", domain.ErrNotFound)
		}
		return domain.FeedbackRecord{}, fmt.Errorf("op=feedback.get: %w", err)
	}
	if err := json.Unmarshal(body, &rec.Feedback); err != nil {
		return domain.FeedbackRecord{}, fmt.Errorf("op=feedback.get: %w", err)
	}
	return rec, nil
}
