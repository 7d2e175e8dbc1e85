package endpoint

import (
	"context"
	"testing"

	"github.com/jonwraymond/aigateway/health"
	"github.com/jonwraymond/aigateway/resilience"
)

func TestNewHealthChecker_NoBreakerIsHealthy(t *testing.T) {
	e := New(Config{Name: "no-breaker"})
	checker := NewHealthChecker(e)

	result := checker.Check(context.Background())
	if result.Status != health.StatusHealthy {
		t.Errorf("Check().Status = %v, want StatusHealthy", result.Status)
	}
}

func TestNewHealthChecker_OpenBreakerIsUnhealthy(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 1})
	_ = breaker.Execute(context.Background(), func(context.Context) error { return resilience.ErrCircuitOpen })

	e := New(Config{Name: "tripped"}, WithCircuitBreaker(breaker))
	checker := NewHealthChecker(e)

	result := checker.Check(context.Background())
	if result.Status != health.StatusUnhealthy {
		t.Errorf("Check().Status = %v, want StatusUnhealthy", result.Status)
	}
	if checker.Name() != "tripped" {
		t.Errorf("Name() = %q, want %q", checker.Name(), "tripped")
	}
}
