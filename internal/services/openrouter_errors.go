package services

import (
	"fmt"
	"time"
)

// Failure taxonomy for the OpenRouter gateway. Callers branch with errors.As;
// nothing below leaks raw transport errors or provider body text into API
// responses.

// AuthenticationError maps HTTP 401: the configured API key was rejected.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("openrouter authentication failed: %s", e.Message)
}

// RateLimitError maps HTTP 429. RetryAfter comes from the Retry-After header
// when present, otherwise 60 seconds.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("openrouter rate limit exceeded (retry after %s): %s", e.RetryAfter, e.Message)
}

// ServerError maps HTTP 5xx responses.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("openrouter server error: status %d", e.StatusCode)
}

// GatewayError covers everything else: unexpected status codes, error
// envelopes inside 200 bodies, malformed bodies, and the open circuit.
type GatewayError struct {
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("openrouter gateway error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("openrouter gateway error: %s", e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// TransientTransportError wraps network-level failures (connection resets,
// per-call timeouts). The gateway retries these internally; one only surfaces
// once the retry budget is spent.
type TransientTransportError struct {
	Err error
}

func (e *TransientTransportError) Error() string {
	return fmt.Sprintf("openrouter transport failure: %v", e.Err)
}

func (e *TransientTransportError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that the caller's overall deadline expired. It is
// never retried: the request is already over from the caller's point of view.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("openrouter request timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}
