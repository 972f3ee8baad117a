package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/castmate/castmate-ai/internal/domain"
)

// ClipRepo stores uploaded clips as bytea rows.
type ClipRepo struct{ Pool PgxPool }

// NewClipRepo constructs a ClipRepo with the given pool.
func NewClipRepo(p PgxPool) *ClipRepo { return &ClipRepo{Pool: p} }

// Create stores a new clip and returns its id (generates one if empty).
func (r *ClipRepo) Create(ctx domain.Context, c domain.Clip) (string, error) {
	ctx, span := startSpan(ctx, "clips", "Create", "INSERT")
	defer span.End()
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO clips (id, filename, mime, size, data, created_at) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, id, c.Filename, c.MIME, c.Size, c.Data, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("op=clip.create: %w", err)
	}
	return id, nil
}

// Get loads a clip, including its bytes, by id.
func (r *ClipRepo) Get(ctx domain.Context, id string) (domain.Clip, error) {
	ctx, span := startSpan(ctx, "clips", "Get", "SELECT")
	defer span.End()
	q := `SELECT id, filename, mime, size, data, created_at FROM clips WHERE id=$1`
	var c domain.Clip
	if err := r.Pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Filename, &c.MIME, &c.Size, &c.Data, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Clip{}, fmt.Errorf("op=clip.get: %w", domain.ErrNotFound)
		}
		return domain.Clip{}, fmt.Errorf("op=clip.get: %w", err)
	}
	return c, nil
}
