package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 2, OpenTimeout: time.Hour}, nil)
	boom := errors.New("boom")
	calls := 0
	fail := func(context.Context) error {
		calls++
		return boom
	}

	assert.ErrorIs(t, b.Execute(context.Background(), fail), boom)
	assert.False(t, b.Open())
	assert.ErrorIs(t, b.Execute(context.Background(), fail), boom)
	assert.True(t, b.Open())

	err := b.Execute(context.Background(), fail)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls, "open circuit does not call the operation")
}

func TestCircuitBreaker_CancellationDoesNotCount(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 1, OpenTimeout: time.Hour}, nil)
	err := b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, b.Open())

	require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))
}
