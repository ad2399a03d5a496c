package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBroker = errors.New("broker down")

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      10 * time.Second,
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errBroker }), errBroker)
	}
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "fn must not run while open")
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBroker })
	}

	clock = clock.Add(11 * time.Second)
	assert.Equal(t, CBHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBroker })
	}
	clock = clock.Add(11 * time.Second)

	assert.ErrorIs(t, cb.Execute(func() error { return errBroker }), errBroker)
	assert.Equal(t, CBOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock)

	_ = cb.Execute(func() error { return errBroker })
	_ = cb.Execute(func() error { return errBroker })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBroker })

	assert.Equal(t, CBClosed, cb.State())
}

func TestCBState_String(t *testing.T) {
	assert.Equal(t, "closed", CBClosed.String())
	assert.Equal(t, "open", CBOpen.String())
	assert.Equal(t, "half-open", CBHalfOpen.String())
	assert.Equal(t, "unknown", CBState(42).String())
}
