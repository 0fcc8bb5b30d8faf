package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// errCircuitOpen is returned by circuitBreaker.allow while the breaker is open.
// The gateway maps it into its own failure taxonomy before it reaches callers.
var errCircuitOpen = errors.New("circuit breaker is open")

// retryPolicy re-runs an operation a bounded number of times. Whether a given
// failure is worth another attempt is the caller's decision via retryable.
type retryPolicy struct {
	maxAttempts int
	backoff     func(attempt int) time.Duration
	// sleep waits between attempts; overridable in tests. The default waits on
	// a timer but gives up as soon as the context is done.
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetryPolicy(maxAttempts int, backoff func(attempt int) time.Duration) retryPolicy {
	return retryPolicy{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		sleep:       sleepContext,
	}
}

// exponentialBackoff returns 2^attempt seconds for attempt 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p retryPolicy) execute(ctx context.Context, op func() error, retryable func(error) bool) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.maxAttempts {
			return lastErr
		}
		if err := p.sleep(ctx, p.backoff(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// circuitBreaker trips after failureThreshold consecutive recorded failures and
// stays open for openFor. After that a single trial call is let through: its
// outcome either closes the breaker again or re-opens it. State is scoped to
// one breaker instance and guarded by a mutex so concurrent requests through
// the same gateway never block each other beyond the state check.
type circuitBreaker struct {
	failureThreshold int
	openFor          time.Duration
	now              func() time.Time

	mu                  sync.Mutex
	consecutiveFailures int
	openedAt            time.Time
	open                bool
}

func newCircuitBreaker(failureThreshold int, openFor time.Duration) *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: failureThreshold,
		openFor:          openFor,
		now:              time.Now,
	}
}

func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.open {
		return nil
	}
	if cb.now().Sub(cb.openedAt) < cb.openFor {
		return errCircuitOpen
	}
	// Half-open: permit one trial call. recordFailure re-opens, recordSuccess
	// resets.
	return nil
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.open = false
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures++
	if cb.consecutiveFailures >= cb.failureThreshold {
		cb.open = true
		cb.openedAt = cb.now()
	}
}
