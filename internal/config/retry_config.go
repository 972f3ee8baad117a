package config

import (
	"github.com/castmate/castmate-ai/internal/domain"
)

// GetRetryConfig returns the worker's redelivery policy.
func (c Config) GetRetryConfig() domain.RetryConfig {
	return domain.RetryConfig{
		MaxRetries:   c.RetryMaxRetries,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		Multiplier:   c.RetryMultiplier,
		Jitter:       c.RetryJitter,
	}
}
