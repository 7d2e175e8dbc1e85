// Package resilience provides failure-handling patterns for outbound
// gateway calls.
//
// It implements the reliability primitives the request-execution core
// wraps around every upstream invocation: a circuit breaker that stops
// hammering a failing provider, retry with backoff for transient
// transport faults, a token-bucket rate limiter for call shaping, and a
// per-call timeout.
//
// # Ecosystem Position
//
// resilience sits between the endpoint layer and the upstream provider:
//
//	┌────────────────────────────────────────────────────────────────┐
//	│                     Outbound Call Flow                         │
//	├────────────────────────────────────────────────────────────────┤
//	│                                                                │
//	│   endpoint            resilience             Upstream          │
//	│   ┌────────┐        ┌───────────┐          ┌──────────┐        │
//	│   │  Call  │───────▶│ ┌───────┐ │─────────▶│ Provider │        │
//	│   │        │        │ │Circuit│ │          │  (API)   │        │
//	│   └────────┘        │ ├───────┤ │          └──────────┘        │
//	│                     │ │ Retry │ │                              │
//	│                     │ ├───────┤ │                              │
//	│                     │ │RateLim│ │                              │
//	│                     │ ├───────┤ │                              │
//	│                     │ │Timeout│ │                              │
//	│                     │ └───────┘ │                              │
//	│                     └───────────┘                              │
//	│                                                                │
//	└────────────────────────────────────────────────────────────────┘
//
// # Patterns
//
//   - [CircuitBreaker]: Prevents cascading failures by rejecting calls to
//     a failing upstream after a threshold is reached. Transitions through
//     Closed → Open → HalfOpen states, admitting a single probe while
//     half-open.
//
//   - [Retry]: Re-runs failed operations with configurable backoff
//     strategies (exponential, linear, constant) and jitter. ExcludeIf is
//     checked before RetryIf, so error kinds that must never retry
//     (validation, auth, not-found) short-circuit immediately.
//
//   - [RateLimiter]: Token-bucket call shaping. AcquireWait reports the
//     wait required for n tokens without sleeping, which the queue layer
//     uses for its admission checks; Allow/Wait/Execute cover direct use.
//
//   - [Timeout]: Context-based deadline for a single upstream call. The
//     endpoint layer applies it to transports that carry no deadline of
//     their own.
//
// # Quick Start
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  5,
//	    ResetTimeout: time.Minute,
//	})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return callUpstream(ctx)
//	})
//
// Concurrency bounding and budget-gated admission are deliberately NOT
// in this package; they belong to the queue layer, which owns the
// executor's semaphore and the per-interval request/token budgets. Wiring
// a second admission control around an individual call would put two
// independently configured budgets in front of the same upstream.
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//
//   - [CircuitBreaker]: Execute(), State(), RetryAfter() are
//     mutex-protected; Reset() is safe
//   - [Retry]: Execute() is stateless and safe for concurrent use
//   - [RateLimiter]: Allow(), AllowN(), Wait(), AcquireWait(), Execute()
//     are mutex-protected
//   - [Timeout]: Execute() is stateless and safe for concurrent use
//
// # Error Handling
//
// Each pattern returns specific sentinel errors (use errors.Is):
//
//   - [ErrCircuitOpen]: Circuit breaker is open, rejecting calls
//   - [ErrRateLimitExceeded]: Rate limit exceeded and no wait configured
//   - [ErrTimeout]: Operation exceeded the configured timeout
//
// The breaker never categorizes the failure it wraps; the caller decides
// which error kinds count as failure via CircuitBreakerConfig.IsFailure.
//
// # Callbacks and Observability
//
//   - CircuitBreakerConfig.OnStateChange: Called on state transitions
//   - RetryConfig.OnRetry: Called before each retry attempt
//   - CircuitBreakerConfig.IsFailure: Custom failure classification
//   - RetryConfig.RetryIf / ExcludeIf: Custom retry decision logic
package resilience
