package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDownstream = errors.New("downstream unavailable")

func newTestBreaker(cfg Config) (*Breaker, func(time.Duration)) {
	b := New(cfg)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return current }
	return b, func(d time.Duration) { current = current.Add(d) }
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{Name: "redis", FailureThreshold: 3})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(func() error { return errDownstream }), errDownstream)
	}
	assert.Equal(t, StateOpen, b.State())

	// While open the call is never attempted.
	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3})

	require.Error(t, b.Do(func() error { return errDownstream }))
	require.Error(t, b.Do(func() error { return errDownstream }))
	require.NoError(t, b.Do(func() error { return nil }))
	require.Error(t, b.Do(func() error { return errDownstream }))
	require.Error(t, b.Do(func() error { return errDownstream }))

	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenProbeRecovers(t *testing.T) {
	b, advance := newTestBreaker(Config{FailureThreshold: 1, CoolDown: 10 * time.Second})

	require.Error(t, b.Do(func() error { return errDownstream }))
	require.Equal(t, StateOpen, b.State())

	advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	b, advance := newTestBreaker(Config{FailureThreshold: 1, CoolDown: 10 * time.Second})

	require.Error(t, b.Do(func() error { return errDownstream }))
	advance(11 * time.Second)

	require.Error(t, b.Do(func() error { return errDownstream }))
	assert.Equal(t, StateOpen, b.State())

	// The clock has not advanced, so calls still fail fast.
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrOpen)
}

func TestProbeQuotaLimitsHalfOpenCalls(t *testing.T) {
	b, advance := newTestBreaker(Config{FailureThreshold: 1, CoolDown: time.Second, ProbeQuota: 1})

	require.Error(t, b.Do(func() error { return errDownstream }))
	advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	go b.Do(func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	// The single probe slot is taken; further calls fail fast.
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrOpen)
	close(release)
}
