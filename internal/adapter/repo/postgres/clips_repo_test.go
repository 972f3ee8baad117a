package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castmate/castmate-ai/internal/adapter/repo/postgres"
	"github.com/castmate/castmate-ai/internal/domain"
)

func TestClipRepo_Create(t *testing.T) {
	pool := &poolStub{}
	repo := postgres.NewClipRepo(pool)

	id, err := repo.Create(context.Background(), domain.Clip{Filename: "take1.mp4", MIME: "video/mp4", Size: 3, Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, pool.lastSQL, "INSERT INTO clips")
	assert.Equal(t, id, pool.lastArgs[0])
	assert.Equal(t, []byte{1, 2, 3}, pool.lastArgs[4])

	id, err = repo.Create(context.Background(), domain.Clip{ID: "clip-1"})
	require.NoError(t, err)
	assert.Equal(t, "clip-1", id)
}

func TestClipRepo_Create_DBError(t *testing.T) {
	repo := postgres.NewClipRepo(&poolStub{execErr: assert.AnError})
	_, err := repo.Create(context.Background(), domain.Clip{})
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "op=clip.create")
}

func TestClipRepo_Get(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "clip-1"
		*(dest[1].(*string)) = "take1.webm"
		*(dest[2].(*string)) = "video/webm"
		*(dest[3].(*int64)) = 2
		*(dest[4].(*[]byte)) = []byte{9, 9}
		*(dest[5].(*time.Time)) = fixed
		return nil
	}}}
	got, err := postgres.NewClipRepo(pool).Get(context.Background(), "clip-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Clip{ID: "clip-1", Filename: "take1.webm", MIME: "video/webm", Size: 2, Data: []byte{9, 9}, CreatedAt: fixed}, got)
}

func TestClipRepo_Get_NotFound(t *testing.T) {
	_, err := postgres.NewClipRepo(&poolStub{row: noRows()}).Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
