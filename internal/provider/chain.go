// Package provider implements the ordered fetch-provider failover chain.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/challenge"
	"github.com/lotview/inventory-crawler/internal/scrape"
)

// Chain tries providers in a fixed priority order. The first provider to
// return clean, non-challenge content wins outright; subsequent providers
// are never consulted for comparison. Unconfigured providers are skipped
// without counting as failures.
type Chain struct {
	providers []scrape.Provider
	detector  *challenge.Detector
	logger    *zap.Logger
}

// NewChain constructs a Chain over the given providers, highest priority
// first.
func NewChain(detector *challenge.Detector, logger *zap.Logger, providers ...scrape.Provider) *Chain {
	return &Chain{
		providers: providers,
		detector:  detector,
		logger:    logger,
	}
}

// Fetch walks the chain until a provider returns clean content. Every
// provider attempt is bounded by opts.Deadline; exceeding it is a failure
// that advances the chain.
func (c *Chain) Fetch(ctx context.Context, url string, opts scrape.FetchOptions) (scrape.FetchResult, error) {
	if opts.Deadline <= 0 {
		opts.Deadline = 30 * time.Second
	}

	var (
		lastErr    error
		challenged bool
	)

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return scrape.FetchResult{}, fmt.Errorf("chain aborted: %w", err)
		}
		if !p.Configured() {
			c.logger.Debug("provider unconfigured, skipping", zap.String("provider", p.Name()))
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, opts.Deadline)
		res, err := p.Fetch(attemptCtx, url, opts)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("%s: %w", p.Name(), scrape.ErrFetchTimeout)
			}
			if errors.Is(err, scrape.ErrChallengeDetected) {
				challenged = true
			}
			scrape.TotalFetchErrors.WithLabelValues(p.Name()).Inc()
			scrape.TotalFailovers.Inc()
			c.logger.Warn("provider fetch failed, advancing chain",
				zap.String("provider", p.Name()), zap.String("url", url), zap.Error(err))
			lastErr = err
			continue
		}

		if c.detector.Challenged(res.HTML) {
			// Fallback API providers cannot wait a challenge out;
			// their interstitial result is just a failure.
			challenged = true
			scrape.TotalFailovers.Inc()
			c.logger.Warn("provider returned challenge page, advancing chain",
				zap.String("provider", p.Name()), zap.String("url", url))
			lastErr = fmt.Errorf("%s: %w", p.Name(), scrape.ErrChallengeDetected)
			continue
		}

		scrape.TotalFetches.WithLabelValues(p.Name()).Inc()
		res.Provider = p.Name()
		return res, nil
	}

	if challenged {
		return scrape.FetchResult{}, fmt.Errorf("fetch %s: %w", url, scrape.ErrChallengeUnresolved)
	}
	if lastErr != nil {
		return scrape.FetchResult{}, fmt.Errorf("fetch %s: all providers failed: %w", url, lastErr)
	}
	return scrape.FetchResult{}, fmt.Errorf("fetch %s: no provider configured", url)
}
