package mcptool

import (
	"context"
	"time"

	"github.com/entrhq/kustodash/pkg/logging"
)

// Invoker issues one remote tool call. Implementations must be safe for
// concurrent use by invocations that do not share a browser session.
type Invoker interface {
	Invoke(ctx context.Context, server, tool string, params map[string]any) (map[string]any, error)
}

// RetryPolicy configures retry behavior for transient failures.
// Immutable after construction.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// BackoffMultiplier scales the delay after every retry. Must be > 1
	// for the delay to strictly increase.
	BackoffMultiplier float64
}

// DefaultRetryPolicy matches the observed flakiness of browser tool
// servers: short first delay, doubling, three attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// Delay returns the backoff before retrying after the given 1-based
// attempt: InitialDelay * BackoffMultiplier^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= p.BackoffMultiplier
	}
	return time.Duration(d)
}

// RetryingInvoker wraps an Invoker with classification-aware retry.
type RetryingInvoker struct {
	next   Invoker
	policy RetryPolicy
	logger *logging.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryingInvoker wraps next with the given policy. A nil logger
// silences retry diagnostics.
func NewRetryingInvoker(next Invoker, policy RetryPolicy, logger *logging.Logger) *RetryingInvoker {
	if logger == nil {
		logger = logging.Discard()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingInvoker{
		next:   next,
		policy: policy,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Invoke attempts the call, retrying transient failures with exponential
// backoff up to the policy budget. Validation failures get exactly one
// attempt. The terminal error is an *InvocationError enumerating the
// attempts made; backoff waits respect context cancellation.
func (r *RetryingInvoker) Invoke(ctx context.Context, server, tool string, params map[string]any) (map[string]any, error) {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		result, err := r.next.Invoke(ctx, server, tool, params)
		attempts = attempt
		if err == nil {
			return result, nil
		}
		lastErr = err

		if Classify(err) == ClassValidation {
			break
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		wait := r.policy.Delay(attempt)
		r.logger.Warnf("retrying %s/%s (attempt %d/%d) after %s: %v",
			server, tool, attempt, r.policy.MaxAttempts, wait, err)
		if err := r.sleep(ctx, wait); err != nil {
			break
		}
	}

	return nil, &InvocationError{
		Server:   server,
		Tool:     tool,
		Attempts: attempts,
		LastErr:  lastErr,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
