package mcptool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubInvoker fails a configurable number of times before succeeding.
type stubInvoker struct {
	calls    int
	failures int
	err      error
	result   map[string]any
}

func (s *stubInvoker) Invoke(_ context.Context, _, _ string, _ map[string]any) (map[string]any, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, s.err
	}
	return s.result, nil
}

func noSleep(r *RetryingInvoker) {
	r.sleep = func(context.Context, time.Duration) error { return nil }
}

func testPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       maxAttempts,
		InitialDelay:      10 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestInvoke_SucceedsAfterTransientFailures(t *testing.T) {
	stub := &stubInvoker{
		failures: 2,
		err:      errors.New("connection reset by peer"),
		result:   map[string]any{"ok": true},
	}
	inv := NewRetryingInvoker(stub, testPolicy(5), nil)
	noSleep(inv)

	result, err := inv.Invoke(context.Background(), "playwright", "browser_navigate", nil)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, result)
	assert.Equal(t, 3, stub.calls, "k failures then success must take exactly k+1 calls")
}

func TestInvoke_ExhaustsRetryBudget(t *testing.T) {
	stub := &stubInvoker{
		failures: 100,
		err:      errors.New("operation timed out"),
	}
	inv := NewRetryingInvoker(stub, testPolicy(4), nil)
	noSleep(inv)

	_, err := inv.Invoke(context.Background(), "playwright", "browser_snapshot", nil)

	require.Error(t, err)
	assert.Equal(t, 4, stub.calls)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 4, invErr.Attempts)
	assert.Equal(t, "playwright", invErr.Server)
	assert.Equal(t, "browser_snapshot", invErr.Tool)
	assert.ErrorIs(t, err, stub.err)
}

func TestInvoke_ValidationFailsAfterSingleAttempt(t *testing.T) {
	stub := &stubInvoker{
		failures: 100,
		err:      &ValidationError{Msg: "url is required"},
	}
	inv := NewRetryingInvoker(stub, testPolicy(5), nil)
	noSleep(inv)

	_, err := inv.Invoke(context.Background(), "playwright", "browser_navigate", nil)

	require.Error(t, err)
	assert.Equal(t, 1, stub.calls, "non-retryable errors get exactly one attempt")

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 1, invErr.Attempts)
}

func TestInvoke_MessageClassifiedValidationNotRetried(t *testing.T) {
	stub := &stubInvoker{
		failures: 100,
		err:      errors.New("invalid parameters: missing ref"),
	}
	inv := NewRetryingInvoker(stub, testPolicy(5), nil)
	noSleep(inv)

	_, err := inv.Invoke(context.Background(), "playwright", "browser_click", nil)

	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestInvoke_UnknownErrorsAreRetried(t *testing.T) {
	stub := &stubInvoker{
		failures: 100,
		err:      errors.New("something odd happened"),
	}
	inv := NewRetryingInvoker(stub, testPolicy(3), nil)
	noSleep(inv)

	_, err := inv.Invoke(context.Background(), "playwright", "browser_click", nil)

	require.Error(t, err)
	assert.Equal(t, 3, stub.calls)
}

func TestInvoke_BackoffDelaysStrictlyIncrease(t *testing.T) {
	stub := &stubInvoker{
		failures: 100,
		err:      errors.New("timeout"),
	}
	inv := NewRetryingInvoker(stub, testPolicy(4), nil)

	var delays []time.Duration
	inv.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := inv.Invoke(context.Background(), "playwright", "browser_snapshot", nil)
	require.Error(t, err)

	require.Len(t, delays, 3)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1])
	}
	assert.Equal(t, 10*time.Millisecond, delays[0])
	assert.Equal(t, 20*time.Millisecond, delays[1])
	assert.Equal(t, 40*time.Millisecond, delays[2])
}

func TestInvoke_ContextCancelledDuringBackoff(t *testing.T) {
	stub := &stubInvoker{
		failures: 100,
		err:      errors.New("timeout"),
	}
	inv := NewRetryingInvoker(stub, testPolicy(5), nil)

	ctx, cancel := context.WithCancel(context.Background())
	inv.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := inv.Invoke(ctx, "playwright", "browser_snapshot", nil)

	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 1, invErr.Attempts)
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:       5,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 3.0,
	}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 300*time.Millisecond, p.Delay(2))
	assert.Equal(t, 900*time.Millisecond, p.Delay(3))
}

func TestInvoke_ConcurrentInvocationsToDifferentServers(t *testing.T) {
	// No shared mutable state: invocations for unrelated servers run
	// independently without interference.
	stubA := &stubInvoker{result: map[string]any{"server": "a"}}
	stubB := &stubInvoker{result: map[string]any{"server": "b"}}

	invA := NewRetryingInvoker(stubA, testPolicy(3), nil)
	invB := NewRetryingInvoker(stubB, testPolicy(3), nil)
	noSleep(invA)
	noSleep(invB)

	done := make(chan error, 2)
	go func() {
		_, err := invA.Invoke(context.Background(), "playwright", "browser_snapshot", nil)
		done <- err
	}()
	go func() {
		_, err := invB.Invoke(context.Background(), "formatter", "format_json", nil)
		done <- err
	}()

	for i := 0; i < 2; i++ {
		assert.NoError(t, <-done)
	}
}

func TestInvocationErrorMessageEnumeratesAttempts(t *testing.T) {
	err := &InvocationError{
		Server:   "playwright",
		Tool:     "browser_navigate",
		Attempts: 3,
		LastErr:  fmt.Errorf("timeout"),
	}
	assert.Contains(t, err.Error(), "3 attempt(s)")
	assert.Contains(t, err.Error(), "playwright/browser_navigate")
}
