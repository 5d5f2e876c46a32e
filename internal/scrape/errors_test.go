package scrape

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"fetch timeout", ErrFetchTimeout, true},
		{"wrapped fetch timeout", fmt.Errorf("browser: %w", ErrFetchTimeout), true},
		{"session expired", ErrSessionExpired, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"challenge unresolved", ErrChallengeUnresolved, false},
		{"queue persistence", ErrQueuePersistence, false},
		{"arbitrary", errors.New("parse error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestItemStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
