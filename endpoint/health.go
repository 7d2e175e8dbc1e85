package endpoint

import (
	"context"
	"fmt"

	"github.com/jonwraymond/aigateway/health"
	"github.com/jonwraymond/aigateway/resilience"
)

// breakerChecker reports an Endpoint's circuit breaker state as a
// health.Checker. A nil breaker (no circuit breaker configured) always
// reports healthy.
type breakerChecker struct {
	e *Endpoint
}

// NewHealthChecker wraps e as a health.Checker reporting its circuit
// breaker state.
func NewHealthChecker(e *Endpoint) health.Checker {
	return &breakerChecker{e: e}
}

func (c *breakerChecker) Name() string { return c.e.cfg.Name }

func (c *breakerChecker) Check(_ context.Context) health.Result {
	if c.e.breaker == nil {
		return health.Healthy(fmt.Sprintf("%s has no circuit breaker configured", c.e.cfg.Name))
	}

	state := c.e.breaker.State()
	details := map[string]any{"circuit_state": state.String()}

	switch state {
	case resilience.StateOpen:
		return health.Unhealthy(fmt.Sprintf("%s circuit is open", c.e.cfg.Name), resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return health.Degraded(fmt.Sprintf("%s circuit is half-open", c.e.cfg.Name)).WithDetails(details)
	default:
		return health.Healthy(fmt.Sprintf("%s circuit is closed", c.e.cfg.Name)).WithDetails(details)
	}
}
