package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/opsloop/triage/internal/logging"
)

var logger = logging.GetLogger("agent.provider")

// RetryConfig controls the exponential backoff applied to reasoning calls.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64

	// AttemptTimeout bounds each individual attempt. An attempt that
	// exceeds it counts as a transient failure and is retried like any
	// other error. Zero means no per-attempt bound.
	AttemptTimeout time.Duration
}

// DefaultRetryConfig returns the standard backoff: 3 attempts, 1s initial
// delay doubling up to 10s, 60s per attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2,
		AttemptTimeout: 60 * time.Second,
	}
}

// RetryProvider wraps a Provider with exponential backoff on transient
// failures. Each attempt is bounded by AttemptTimeout; a timed-out
// attempt is retried like any other failure. Cancellation of the caller's
// context aborts the backoff immediately.
type RetryProvider struct {
	inner Provider
	cfg   RetryConfig
}

// WithRetry wraps a provider with retry behavior.
func WithRetry(inner Provider, cfg RetryConfig) *RetryProvider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	return &RetryProvider{inner: inner, cfg: cfg}
}

// Chat implements Provider.Chat with retries.
func (p *RetryProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	var lastErr error
	delay := p.cfg.InitialDelay

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		resp, err := p.chatOnce(ctx, systemPrompt, messages, tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// A dead caller context aborts the whole chain. An expired
		// per-attempt deadline does not reach here and is retried.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}

		logger.WarnWithFields("Reasoning call failed, retrying",
			logging.Field("provider", p.inner.Name()),
			logging.Field("attempt", attempt),
			logging.Field("delay", delay.String()),
			logging.Field("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.cfg.Multiplier)
		if delay > p.cfg.MaxDelay {
			delay = p.cfg.MaxDelay
		}
	}

	return nil, fmt.Errorf("reasoning call failed after %d attempts: %w", p.cfg.MaxAttempts, lastErr)
}

// chatOnce runs a single attempt under the per-attempt timeout.
func (p *RetryProvider) chatOnce(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	if p.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		defer cancel()
	}
	return p.inner.Chat(ctx, systemPrompt, messages, tools)
}

// Name implements Provider.Name.
func (p *RetryProvider) Name() string {
	return p.inner.Name()
}

// Model implements Provider.Model.
func (p *RetryProvider) Model() string {
	return p.inner.Model()
}
