package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("downstream unavailable")

func testConfig() Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		MaxRequestsHalfOpen: 1,
	}
}

func fail() error    { return errDown }
func succeed() error { return nil }

func trip(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	for i := 0; i < testConfig().FailureThreshold; i++ {
		err := cb.Execute(context.Background(), fail)
		require.ErrorIs(t, err, errDown)
	}
	require.Equal(t, StateOpen, cb.State())
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(testConfig())
	assert.Equal(t, StateClosed, cb.State())

	trip(t, cb)

	err := cb.Execute(context.Background(), succeed)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	require.NoError(t, cb.Execute(context.Background(), succeed))

	// two more failures are below the threshold again
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenAfterTimeout(t *testing.T) {
	cb := New(testConfig())
	trip(t, cb)

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestHalfOpenSuccessClosesCircuit(t *testing.T) {
	cb := New(testConfig())
	trip(t, cb)
	time.Sleep(25 * time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), succeed))
	require.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopensCircuit(t *testing.T) {
	cb := New(testConfig())
	trip(t, cb)
	time.Sleep(25 * time.Millisecond)

	require.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.Equal(t, StateOpen, cb.State())
}

func TestHalfOpenProbeBudget(t *testing.T) {
	cb := New(testConfig())
	trip(t, cb)
	time.Sleep(25 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	// the single probe slot is taken while the first call is in flight
	err := cb.Execute(context.Background(), succeed)
	assert.ErrorIs(t, err, ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
}

func TestOnStateChangeCallback(t *testing.T) {
	cb := New(testConfig())

	var transitions []State
	cb.OnStateChange(func(from, to State) {
		transitions = append(transitions, to)
	})

	trip(t, cb)
	time.Sleep(25 * time.Millisecond)
	_ = cb.State()

	require.Len(t, transitions, 2)
	assert.Equal(t, StateOpen, transitions[0])
	assert.Equal(t, StateHalfOpen, transitions[1])
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
