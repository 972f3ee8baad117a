package app

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/castmate/castmate-ai/internal/adapter/ai"
	"github.com/castmate/castmate-ai/internal/adapter/ai/gemini"
	"github.com/castmate/castmate-ai/internal/adapter/ai/stub"
	"github.com/castmate/castmate-ai/internal/config"
	"github.com/castmate/castmate-ai/internal/domain"
	"github.com/castmate/castmate-ai/internal/service/ratelimiter"
)

// ErrNoGeminiKey is returned outside dev when GEMINI_API_KEY is unset.
var ErrNoGeminiKey = errors.New("GEMINI_API_KEY is required outside dev")

// BuildGenerator returns the Gemini client behind the shared Redis rate limit
// and the generation cache. In dev without an API key it returns the canned
// stub generator so the stack runs offline. rdb may be nil.
func BuildGenerator(cfg config.Config, rdb redis.UniversalClient) (domain.Generator, error) {
	if cfg.GeminiAPIKey == "" {
		if !cfg.IsDev() && !cfg.IsTest() {
			return nil, ErrNoGeminiKey
		}
		slog.Warn("GEMINI_API_KEY unset, using stub generator")
		return stub.New(), nil
	}
	var limiter gemini.RateLimiter
	if rdb != nil && cfg.GeminiRatePerMin > 0 {
		limiter = ratelimiter.NewRedisLuaLimiter(rdb, map[string]ratelimiter.BucketConfig{
			gemini.RateLimitKey: ratelimiter.NewBucketConfigFromPerMinute(cfg.GeminiRatePerMin),
		})
	}
	var cacheRDB redis.Cmdable
	if rdb != nil {
		cacheRDB = rdb
	}
	return ai.NewGenerationCache(gemini.New(cfg, limiter), cacheRDB, cfg.ChatbotCacheTTL), nil
}
