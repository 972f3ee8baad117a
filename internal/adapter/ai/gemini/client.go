// Package gemini implements domain.Generator against the Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/castmate/castmate-ai/internal/adapter/observability"
	"github.com/castmate/castmate-ai/internal/config"
	"github.com/castmate/castmate-ai/internal/domain"
	obsctx "github.com/castmate/castmate-ai/internal/observability"
	"github.com/castmate/castmate-ai/pkg/textx"
)

const (
	provider = "gemini"
	// RateLimitKey is the shared token-bucket key for generateContent calls.
	RateLimitKey = "gemini:generate"
	snippetLimit = 512
)

// RateLimiter blocks until the shared request budget allows one more call.
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

// Client calls generateContent with retries, a circuit breaker and a shared rate limit.
type Client struct {
	cfg     config.Config
	hc      *http.Client
	limiter RateLimiter
	breaker *observability.CircuitBreaker
}

// New constructs a Gemini client. limiter may be nil.
func New(cfg config.Config, limiter RateLimiter) *Client {
	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   cfg.GeminiTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: limiter,
		breaker: observability.NewCircuitBreaker(provider, 5, 30*time.Second),
	}
}

// getBackoffConfig returns a configured ExponentialBackOff based on the current environment.
func (c *Client) getBackoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsedTime, initialInterval, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsedTime
	expo.InitialInterval = initialInterval
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

func (c *Client) buildBody(req domain.GenerateRequest) ([]byte, error) {
	parts := []part{{Text: req.Prompt}}
	if req.Media != nil && len(req.Media.Data) > 0 {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: req.Media.MIME,
			Data:     base64.StdEncoding.EncodeToString(req.Media.Data),
		}})
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.GeminiMaxOutputTokens
	}
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     c.cfg.GeminiTemperature,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	if req.JSONOutput {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}
	return json.Marshal(body)
}

// statusError is a non-2xx reply from the API.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("generateContent status %d: %s", e.status, e.body)
}

// Generate sends one prompt and returns the raw response envelope.
// Errors wrap domain.ErrUpstreamTimeout, domain.ErrUpstreamRateLimit,
// domain.ErrMalformedEnvelope (undecodable 2xx body) or domain.ErrTransport.
func (c *Client) Generate(ctx domain.Context, req domain.GenerateRequest) (*domain.GenerationEnvelope, error) {
	lg := obsctx.LoggerFromContext(ctx)
	if c.cfg.GeminiAPIKey == "" {
		lg.Error("Gemini API key missing", "provider", provider)
		return nil, fmt.Errorf("%w: GEMINI_API_KEY missing", domain.ErrInvalidArgument)
	}

	tracer := otel.Tracer("gemini.client")
	ctx, span := tracer.Start(ctx, "gemini.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("gen_ai.system", provider),
		attribute.String("gen_ai.request.model", c.cfg.GeminiModel),
		attribute.Bool("gemini.has_media", req.Media != nil),
	)
	if jid := obsctx.JobIDFromContext(ctx); jid != "" {
		span.SetAttributes(attribute.String("castmate.job_id", jid))
	}

	if err := c.breaker.Allow(); err != nil {
		lg.Warn("gemini circuit open", "provider", provider)
		span.SetStatus(codes.Error, "circuit open")
		return nil, fmt.Errorf("op=gemini.Generate: %w: %v", domain.ErrTransport, err)
	}

	b, err := c.buildBody(req)
	if err != nil {
		c.breaker.Release()
		return nil, fmt.Errorf("op=gemini.Generate: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.GeminiBaseURL, c.cfg.GeminiModel)

	var env domain.GenerationEnvelope
	attempts := 0
	op := func() error {
		attempts++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, RateLimitKey); err != nil {
				return backoff.Permanent(err)
			}
		}
		start := time.Now()
		// Recreate request each attempt to avoid reusing consumed bodies
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("x-goog-api-key", c.cfg.GeminiAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues(provider, "generate").Inc()
		observability.AIRequestDuration.WithLabelValues(provider, "generate").Observe(time.Since(start).Seconds())
		if err != nil {
			lg.Warn("gemini request failed", "provider", provider, "attempt", attempts, "error", err)
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			lg.Error("failed to read response body", "provider", provider, "error", err)
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			// Retryable: let backoff handle retries
			lg.Warn("ai provider rate limited", "provider", provider, "status", resp.StatusCode, "attempt", attempts)
			return &statusError{status: resp.StatusCode, body: textx.Preview(string(bodyBytes), snippetLimit)}
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client error: non-retryable
			snippet := textx.Preview(string(bodyBytes), snippetLimit)
			lg.Warn("ai provider 4xx", "provider", provider, "status", resp.StatusCode, "model", c.cfg.GeminiModel, "body", snippet)
			return backoff.Permanent(&statusError{status: resp.StatusCode, body: snippet})
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// 5xx and others: retryable
			snippet := textx.Preview(string(bodyBytes), snippetLimit)
			lg.Error("ai provider non-2xx", "provider", provider, "status", resp.StatusCode, "model", c.cfg.GeminiModel, "body", snippet)
			return &statusError{status: resp.StatusCode, body: snippet}
		}
		if err := json.Unmarshal(bodyBytes, &env); err != nil {
			lg.Error("ai provider decode error", "provider", provider, "error", err, "body", textx.Preview(string(bodyBytes), snippetLimit))
			return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, err))
		}
		return nil
	}

	expo := c.getBackoffConfig()
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		mapped := classify(ctx, err)
		if errors.Is(mapped, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			// the upstream never answered; free a half-open slot without a verdict
			c.breaker.Release()
		} else {
			c.breaker.Record(countsAsOutage(mapped))
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, "generate failed")
		lg.Error("Gemini API failed after retries", "provider", provider, "attempts", attempts, "error", mapped)
		return nil, fmt.Errorf("op=gemini.Generate: %w", mapped)
	}
	c.breaker.Record(false)
	if env.UsageMetadata != nil {
		span.SetAttributes(
			attribute.Int("gen_ai.usage.input_tokens", env.UsageMetadata.PromptTokenCount),
			attribute.Int("gen_ai.usage.output_tokens", env.UsageMetadata.CandidatesTokenCount),
		)
	}
	lg.Info("Gemini API call successful", "provider", provider, "model", c.cfg.GeminiModel, "attempts", attempts, "candidates", len(env.Candidates))
	return &env, nil
}

// classify maps a final retry error onto the domain taxonomy.
func classify(ctx context.Context, err error) error {
	var se *statusError
	var ne net.Error
	switch {
	case errors.Is(err, domain.ErrMalformedEnvelope):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	case errors.As(err, &se) && se.status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", domain.ErrUpstreamRateLimit, err)
	case errors.As(err, &se) && se.status >= 400 && se.status < 500:
		return fmt.Errorf("%w: %w", domain.ErrUpstreamRejected, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
}

// countsAsOutage reports whether a failure says the upstream itself is unhealthy.
func countsAsOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, domain.ErrUpstreamTimeout) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500
	}
	return errors.Is(err, domain.ErrTransport)
}
