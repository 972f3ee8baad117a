package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/castmate/castmate-ai/internal/adapter/observability"
	"github.com/castmate/castmate-ai/internal/domain"
)

// generationCache wraps a Generator and caches text-only generations.
// Lookups go to an in-process cache first, then Redis (shared across replicas).
// Requests carrying media are never cached, and neither are envelopes that
// hold no usable text, so safety blocks and drift are always re-asked.
// It is safe for concurrent use.
type generationCache struct {
	base  domain.Generator
	local *gocache.Cache
	rdb   redis.Cmdable
	ttl   time.Duration
}

// NewGenerationCache wraps base with a two-level cache. rdb may be nil.
// If ttl <= 0, base is returned unmodified.
func NewGenerationCache(base domain.Generator, rdb redis.Cmdable, ttl time.Duration) domain.Generator {
	if ttl <= 0 || base == nil {
		return base
	}
	return &generationCache{
		base:  base,
		local: gocache.New(ttl, 2*ttl),
		rdb:   rdb,
		ttl:   ttl,
	}
}

func (c *generationCache) Generate(ctx domain.Context, req domain.GenerateRequest) (*domain.GenerationEnvelope, error) {
	if req.Media != nil {
		return c.base.Generate(ctx, req)
	}
	k := keyFor(req.SystemPrompt + "\x00" + req.Prompt + "\x00" + strconv.Itoa(req.MaxTokens) + "\x00" + strconv.FormatBool(req.JSONOutput))

	if v, ok := c.local.Get(k); ok {
		observability.ObserveCache("local", true)
		env := v.(domain.GenerationEnvelope)
		return &env, nil
	}
	observability.ObserveCache("local", false)

	if env, ok := c.getRedis(ctx, k); ok {
		c.local.SetDefault(k, env)
		return &env, nil
	}

	env, err := c.base.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, terr := ExtractText(*env); terr == nil {
		c.local.SetDefault(k, *env)
		c.setRedis(ctx, k, *env)
	}
	return env, nil
}

func (c *generationCache) getRedis(ctx context.Context, k string) (domain.GenerationEnvelope, bool) {
	if c.rdb == nil {
		return domain.GenerationEnvelope{}, false
	}
	b, err := c.rdb.Get(ctx, "gen:"+k).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("generation cache read failed", slog.Any("error", err))
		}
		observability.ObserveCache("redis", false)
		return domain.GenerationEnvelope{}, false
	}
	var env domain.GenerationEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		observability.ObserveCache("redis", false)
		return domain.GenerationEnvelope{}, false
	}
	observability.ObserveCache("redis", true)
	return env, true
}

func (c *generationCache) setRedis(ctx context.Context, k string, env domain.GenerationEnvelope) {
	if c.rdb == nil {
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, "gen:"+k, b, c.ttl).Err(); err != nil {
		slog.Warn("generation cache write failed", slog.Any("error", err))
	}
}

func keyFor(text string) string {
	s := strings.TrimSpace(text)
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
