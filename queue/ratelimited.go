package queue

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/aigateway/apierr"
	"github.com/jonwraymond/aigateway/observe"
	"github.com/jonwraymond/aigateway/resilience"
)

// BudgetConfig configures the request/token budget a RateLimitedExecutor
// enforces on top of its Executor.
type BudgetConfig struct {
	// LimitRequests caps the number of task admissions resident per
	// Interval. Zero means the request budget is unchecked.
	LimitRequests int

	// LimitTokens caps the total RequiredTokens admitted per Interval.
	// Zero means the token budget is unchecked.
	LimitTokens int

	// Interval is the replenishment period for both gauges.
	// Default: the backing queue's RefreshInterval.
	Interval time.Duration

	// Limiter optionally shapes the admission rate with a token bucket.
	// A task is admitted only when a bucket token is immediately
	// available; otherwise the executor re-checks on its next cycle, by
	// which time the bucket has refilled. Nil disables shaping.
	Limiter *resilience.RateLimiter
}

// RateLimitedExecutor is an Executor whose admission is additionally gated
// by a request budget and a token budget, both replenished on a fixed
// interval by a background goroutine.
//
// The two gauges, availableRequest and availableToken, are independent:
// a task is admitted only if every configured limit it is subject to has
// headroom, and admission decrements exactly the gauges that apply. This
// corrects a defect in the budget accounting this component is modelled
// on, where a single counter did double duty as both a static limit and a
// running balance; here the limit and the balance are always distinct
// fields.
type RateLimitedExecutor struct {
	*Executor

	cfg BudgetConfig

	mu               sync.Mutex
	availableRequest int
	availableToken   int

	logger observe.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRateLimitedExecutor constructs a RateLimitedExecutor. budget's zero
// fields mean "unchecked" for LimitRequests/LimitTokens; a zero Interval
// defaults to queueCfg's RefreshInterval.
func NewRateLimitedExecutor(queueCfg Config, budget BudgetConfig, opts ...Option) *RateLimitedExecutor {
	queueCfg.applyDefaults()
	if budget.Interval <= 0 {
		budget.Interval = queueCfg.RefreshInterval
	}

	rle := &RateLimitedExecutor{
		cfg:              budget,
		availableRequest: budget.LimitRequests,
		availableToken:   budget.LimitTokens,
		logger:           observe.NewLogger("info"),
		stop:             make(chan struct{}),
	}
	opts = append(opts, WithPermission(rle.requestPermission))
	rle.Executor = NewExecutor(queueCfg, opts...)
	return rle
}

// Append registers t, rejecting it immediately with
// apierr.ErrTokenBudgetUnsatisfiable if its required token cost could
// never fit within LimitTokens. Shadows the embedded Executor.Append,
// which has no such check and cannot fail.
func (rle *RateLimitedExecutor) Append(t Task) error {
	if rle.cfg.LimitTokens > 0 {
		if required, ok := t.RequiredTokens(); ok && required > rle.cfg.LimitTokens {
			return apierr.ErrTokenBudgetUnsatisfiable
		}
	}
	rle.Executor.Append(t)
	return nil
}

// requestPermission implements the admission algorithm:
//  1. both limits unset: the queue must have headroom.
//  2. limit_requests set: require availableRequest > 0.
//  3. limit_tokens set and the task carries a cost: require
//     availableToken >= cost. A cost that can never fit within
//     LimitTokens is rejected outright rather than retried forever.
//  4. a configured token-bucket limiter must grant a token immediately.
//  5. every check passed: decrement exactly the gauges that apply.
//
// The budgets are checked before the bucket and mutated after it, so a
// denial on any gate costs neither budget nor bucket tokens; the only
// spend happens on an actual admission.
func (rle *RateLimitedExecutor) requestPermission(_ context.Context, t Task) (bool, error) {
	rle.mu.Lock()
	defer rle.mu.Unlock()

	required, hasTokenCost := t.RequiredTokens()

	if rle.cfg.LimitRequests <= 0 && rle.cfg.LimitTokens <= 0 {
		if rle.Executor.Queue().AvailableCapacity() <= 0 {
			return false, nil
		}
	} else {
		if rle.cfg.LimitRequests > 0 && rle.availableRequest <= 0 {
			return false, nil
		}
		if rle.cfg.LimitTokens > 0 && hasTokenCost {
			if required > rle.cfg.LimitTokens {
				return false, apierr.ErrTokenBudgetUnsatisfiable
			}
			if required > rle.availableToken {
				return false, nil
			}
		}
	}

	if rle.cfg.Limiter != nil && rle.cfg.Limiter.AcquireWait(1) > 0 {
		return false, nil
	}

	if rle.cfg.LimitRequests > 0 {
		rle.availableRequest--
	}
	if rle.cfg.LimitTokens > 0 && hasTokenCost {
		rle.availableToken -= required
	}
	return true, nil
}

// Start starts the backing queue and launches the background replenisher
// goroutine. It does not run the executor's drain loop; Run does that.
// Call Stop (or cancel ctx) to end the replenisher.
func (rle *RateLimitedExecutor) Start(ctx context.Context) {
	rle.Executor.Queue().Start()
	rle.wg.Add(1)
	go rle.replenish(ctx)
}

// replenish tracks resident queue work against the request budget
// (available_request := limit_requests - queue size) and fully refills
// the token gauge every Interval.
func (rle *RateLimitedExecutor) replenish(ctx context.Context) {
	defer rle.wg.Done()
	ticker := time.NewTicker(rle.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rle.stop:
			return
		case <-ticker.C:
			rle.mu.Lock()
			if rle.cfg.LimitRequests > 0 {
				resident := len(rle.Executor.Queue().ch)
				rle.availableRequest = rle.cfg.LimitRequests - resident
			}
			if rle.cfg.LimitTokens > 0 {
				rle.availableToken = rle.cfg.LimitTokens
			}
			rle.mu.Unlock()
		}
	}
}

// Stop ends the replenisher goroutine, then stops the backing queue. It
// does not join the queue: tasks still queued or running are not waited
// for. Idempotent: a second Stop is a no-op.
func (rle *RateLimitedExecutor) Stop() {
	rle.stopOnce.Do(func() { close(rle.stop) })
	rle.wg.Wait()
	rle.Executor.Queue().Stop()
}

// Budget reports the current gauges, for diagnostics and metrics export.
func (rle *RateLimitedExecutor) Budget() (availableRequest, availableToken int) {
	rle.mu.Lock()
	defer rle.mu.Unlock()
	return rle.availableRequest, rle.availableToken
}
