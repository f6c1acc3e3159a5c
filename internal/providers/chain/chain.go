// Package chain runs an ordered list of provider strategies until one
// succeeds. A strategy failure moves the chain forward; the first success is
// returned without touching later strategies. When every strategy fails the
// chain surfaces the last strategy's error, which is the most actionable one
// for the caller; earlier errors are logged.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"mediaforge/internal/infra/metrics"
)

// Strategy is one provider attempt in a chain.
type Strategy[Req, Res any] interface {
	Name() string
	Attempt(ctx context.Context, req Req) (Res, error)
}

// Chain tries strategies in order. Transient errors within one strategy are
// retried with exponential backoff before the chain moves on; permanent
// errors advance immediately.
type Chain[Req, Res any] struct {
	name       string
	strategies []Strategy[Req, Res]
	logger     zerolog.Logger
	maxRetries uint64
}

// New builds a chain. maxRetries bounds the per-strategy retry budget for
// transient errors; 0 disables retries.
func New[Req, Res any](name string, logger zerolog.Logger, maxRetries uint64, strategies ...Strategy[Req, Res]) *Chain[Req, Res] {
	return &Chain[Req, Res]{
		name:       name,
		strategies: strategies,
		logger:     logger.With().Str("chain", name).Logger(),
		maxRetries: maxRetries,
	}
}

// Do runs the chain.
func (c *Chain[Req, Res]) Do(ctx context.Context, req Req) (Res, error) {
	var zero Res
	if len(c.strategies) == 0 {
		return zero, fmt.Errorf("chain %s: no strategies configured", c.name)
	}
	var lastErr error
	var lastName string
	for _, s := range c.strategies {
		res, err := c.attempt(ctx, s, req)
		if err == nil {
			metrics.StrategyAttempts.WithLabelValues(c.name, s.Name(), "success").Inc()
			return res, nil
		}
		metrics.StrategyAttempts.WithLabelValues(c.name, s.Name(), "failure").Inc()
		c.logger.Warn().Err(err).Str("strategy", s.Name()).Msg("strategy failed, advancing")
		lastErr = err
		lastName = s.Name()
		if ctx.Err() != nil {
			break
		}
	}
	return zero, fmt.Errorf("chain %s exhausted, last strategy %s: %w", c.name, lastName, lastErr)
}

func (c *Chain[Req, Res]) attempt(ctx context.Context, s Strategy[Req, Res], req Req) (Res, error) {
	op := func() (Res, error) {
		res, err := s.Attempt(ctx, req)
		if err != nil && !IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	return backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
}
