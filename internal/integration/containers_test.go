//go:build integration

// Package integration runs the repositories and the rate limiter against real
// Postgres and Redis containers. Run with: go test -tags integration ./internal/integration/...
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/castmate/castmate-ai/internal/adapter/repo/postgres"
	"github.com/castmate/castmate-ai/internal/domain"
	"github.com/castmate/castmate-ai/internal/service/ratelimiter"
)

func autoRemove(hc *container.HostConfig) { hc.AutoRemove = true }

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port nat.Port) string {
	t.Helper()
	ctx := context.Background()
	req.HostConfigModifier = autoRemove
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })
	host, err := c.Host(ctx)
	require.NoError(t, err)
	p, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	return host + ":" + p.Port()
}

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "castmate"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}, "5432/tcp")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, "postgres://postgres:postgres@"+addr+"/castmate?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.Eventually(t, func() bool { return pool.Ping(ctx) == nil }, 30*time.Second, time.Second)

	schema, err := os.ReadFile(filepath.Join("..", "..", "deploy", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	return pool
}

func TestRepositories_RoundTrip(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	clips := postgres.NewClipRepo(pool)
	jobs := postgres.NewJobRepo(pool)
	results := postgres.NewFeedbackRepo(pool)

	clipID, err := clips.Create(ctx, domain.Clip{Filename: "take.mp4", MIME: "video/mp4", Size: 3, Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	clip, err := clips.Get(ctx, clipID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, clip.Data)

	key := "idem-1"
	jobID, err := jobs.Create(ctx, domain.Job{Status: domain.JobQueued, ClipID: clipID, RoleContext: "Andromaque", IdemKey: &key})
	require.NoError(t, err)
	_, err = jobs.Create(ctx, domain.Job{Status: domain.JobQueued, ClipID: clipID, IdemKey: &key})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = jobs.Create(ctx, domain.Job{Status: domain.JobQueued, ClipID: "00000000-0000-0000-0000-000000000000"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	found, err := jobs.FindByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, jobID, found.ID)

	stale, err := jobs.ListStale(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	fb := domain.TrainingFeedback{GlobalScore: 64, Summary: "Belle énergie."}
	require.NoError(t, results.Upsert(ctx, domain.FeedbackRecord{JobID: jobID, Feedback: fb, Outcome: domain.OutcomePartialRecovered}))
	require.NoError(t, jobs.UpdateStatus(ctx, jobID, domain.JobCompleted, nil))

	rec, err := results.GetByJobID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 64, rec.Feedback.GlobalScore)
	assert.Equal(t, domain.OutcomePartialRecovered, rec.Outcome)

	stale, err = jobs.ListStale(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestCleanup_RemovesExpiredRows(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	clipID, err := postgres.NewClipRepo(pool).Create(ctx, domain.Clip{Filename: "old.mp4", MIME: "video/mp4", Size: 1, Data: []byte{1}})
	require.NoError(t, err)
	jobID, err := postgres.NewJobRepo(pool).Create(ctx, domain.Job{Status: domain.JobFailed, ClipID: clipID})
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE jobs SET created_at = now() - interval '40 days' WHERE id=$1`, jobID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE clips SET created_at = now() - interval '40 days' WHERE id=$1`, clipID)
	require.NoError(t, err)

	require.NoError(t, postgres.NewCleanupService(pool, 30).CleanupOldData(ctx))

	_, err = postgres.NewJobRepo(pool).Get(ctx, jobID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = postgres.NewClipRepo(pool).Get(ctx, clipID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisLuaLimiter_AgainstRedis(t *testing.T) {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}, "6379/tcp")
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.Eventually(t, func() bool { return rdb.Ping(ctx).Err() == nil }, 30*time.Second, time.Second)

	lim := ratelimiter.NewRedisLuaLimiter(rdb, map[string]ratelimiter.BucketConfig{
		"gemini:generate": ratelimiter.NewBucketConfigFromPerMinute(2),
	})
	allowed := 0
	for i := 0; i < 3; i++ {
		ok, _, err := lim.Allow(ctx, "gemini:generate", 1)
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}
