// Package embedding turns text into fixed-dimension float vectors.
//
// A Provider wraps one embedding API (OpenAI or Gemini) and reports
// errors normally. Client is the fail-soft layer the retrieval engine
// consumes: it returns a nil vector instead of an error on missing
// credentials, transport failures, or empty input, so callers can treat
// "no embedding" as "retrieval unavailable" rather than a fault to
// propagate. The distinction matters because a degraded chat reply
// without retrieved context is strictly better than a failed one.
package embedding

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cocoroai/sinr/internal/log"
)

// DefaultDimension is the vector width used across ingestion and
// search. Mixing widths within one namespace is undefined behavior, so
// the dimension is fixed per deployment and validated in config.
const DefaultDimension = 1536

// DefaultTimeout bounds a single embedding call. An unresponsive
// provider must not hang the caller.
const DefaultTimeout = 10 * time.Second

// Provider generates an embedding vector for a single text.
// Implementations report errors; fail-soft degradation is Client's job.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Configured reports whether the provider holds a usable credential.
	// An unconfigured provider must never be asked to make a network call.
	Configured() bool

	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit caps embedding calls at rps requests per second with
// the given burst. Batch ingestion uses this to stay under provider
// rate limits; the interactive search path runs unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Client is the fail-soft embedding front end. All failure modes are
// logged and collapsed into a nil return; Client never returns an error.
type Client struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   log.Logger
}

// NewClient wraps provider with fail-soft semantics. provider may be
// nil, in which case the client reports unconfigured and every Embed
// returns nil without a network call.
func NewClient(provider Provider, logger log.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	c := &Client{
		provider: provider,
		timeout:  DefaultTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an embedding credential is available.
// Callers on the search path check this before doing any work.
func (c *Client) Configured() bool {
	return c.provider != nil && c.provider.Configured()
}

// Embed returns the embedding vector for text, or nil when the text is
// empty, no credential is configured, or the provider call fails.
func (c *Client) Embed(ctx context.Context, text string) []float32 {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return nil
	}

	if !c.Configured() {
		c.logger.Debug("embedding skipped, no provider configured")
		return nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn("embedding rate limiter wait canceled", "error", err)
			return nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vector, err := c.provider.Embed(callCtx, normalized)
	if err != nil {
		c.logger.Warn("embedding generation failed",
			"provider", c.provider.Name(), "error", err)
		return nil
	}
	if len(vector) == 0 {
		c.logger.Warn("embedding provider returned empty vector",
			"provider", c.provider.Name())
		return nil
	}

	return vector
}
