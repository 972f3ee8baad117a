package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(maxFailures int) (*CircuitBreaker, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("test", maxFailures, time.Minute)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(true)
	}
	assert.Equal(t, StateClosed, cb.State())

	// a success resets the count
	require.NoError(t, cb.Allow())
	cb.Record(false)
	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(true)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, now := newTestBreaker(1)
	require.NoError(t, cb.Allow())
	cb.Record(true)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	*now = now.Add(time.Minute)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	// only one probe at a time
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	cb.Record(false)
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, now := newTestBreaker(2)
	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(true)
	}
	*now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	cb.Record(true)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_ReleaseFreesProbeWithoutClosing(t *testing.T) {
	cb, now := newTestBreaker(1)
	require.NoError(t, cb.Allow())
	cb.Record(true)
	*now = now.Add(time.Minute)

	require.NoError(t, cb.Allow())
	cb.Release()
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Allow())
	cb.Record(true)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(9).String())
}
