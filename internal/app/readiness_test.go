package app

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestBuildReadinessProbes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	kafkaErr := errors.New("no brokers")
	probes := BuildReadinessProbes(
		pingerFunc(func(context.Context) error { return nil }),
		rdb,
		pingerFunc(func(context.Context) error { return kafkaErr }),
	)
	require.Len(t, probes, 3)
	ctx := context.Background()
	assert.Equal(t, "db", probes[0].Name)
	assert.NoError(t, probes[0].Check(ctx))
	assert.Equal(t, "redis", probes[1].Name)
	assert.NoError(t, probes[1].Check(ctx))
	assert.Equal(t, "kafka", probes[2].Name)
	assert.ErrorIs(t, probes[2].Check(ctx), kafkaErr)

	mr.Close()
	assert.Error(t, probes[1].Check(ctx))
}

func TestBuildReadinessProbes_NilDependencies(t *testing.T) {
	probes := BuildReadinessProbes(nil, nil, nil)
	require.Len(t, probes, 3)
	for _, p := range probes {
		assert.Nil(t, p.Check, p.Name)
	}
}
