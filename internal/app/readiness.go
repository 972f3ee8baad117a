package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/castmate/castmate-ai/internal/adapter/httpserver"
)

// Pinger is anything with a liveness round trip: the pgx pool, the kafka producer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildReadinessProbes returns the db, redis and kafka probes for /readyz.
// A nil dependency yields a probe that always reports "not configured".
func BuildReadinessProbes(pool Pinger, rdb redis.Cmdable, kafka Pinger) []httpserver.ReadinessProbe {
	probes := []httpserver.ReadinessProbe{
		{Name: "db"},
		{Name: "redis"},
		{Name: "kafka"},
	}
	if pool != nil {
		probes[0].Check = pool.Ping
	}
	if rdb != nil {
		probes[1].Check = func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			return nil
		}
	}
	if kafka != nil {
		probes[2].Check = kafka.Ping
	}
	return probes
}
