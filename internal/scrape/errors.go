package scrape

import (
	"context"
	"errors"
	"net"
)

// Sentinel errors shared across the fetch and persistence pipeline.
var (
	// ErrProviderUnavailable means a provider has no credential configured.
	// The chain skips it without counting a failure.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrFetchTimeout means a fetch exceeded its deadline. Retryable.
	ErrFetchTimeout = errors.New("fetch timeout")

	// ErrChallengeDetected means a provider returned an anti-bot
	// interstitial instead of real content. The chain advances.
	ErrChallengeDetected = errors.New("challenge detected")

	// ErrChallengeUnresolved means every provider in the chain was
	// exhausted while the page was still challenged.
	ErrChallengeUnresolved = errors.New("challenge unresolved")

	// ErrQueuePersistence means the durable queue store failed. Fatal for
	// the run: without it the resumability guarantees break.
	ErrQueuePersistence = errors.New("queue persistence failure")

	// ErrSessionExpired means a stored session was read past its TTL or
	// without its authority cookie.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// Retryable reports whether a per-item failure should requeue the item.
// Timeouts and detached browser sessions are transient; an unresolved
// challenge already consumed the whole chain and is not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChallengeUnresolved) {
		return false
	}
	if errors.Is(err, ErrFetchTimeout) || errors.Is(err, ErrSessionExpired) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
