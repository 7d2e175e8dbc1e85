package queue

import (
	"context"
	"testing"

	"github.com/jonwraymond/aigateway/health"
)

func TestNewHealthChecker_ReportsDegradedWhenFull(t *testing.T) {
	e := NewExecutor(Config{Capacity: 2})
	e.queue.SetAvailableCapacity(0)

	checker := NewHealthChecker("test-executor", e)
	result := checker.Check(context.Background())

	if result.Status != health.StatusDegraded {
		t.Errorf("Check().Status = %v, want StatusDegraded", result.Status)
	}
}

func TestNewHealthChecker_ReportsHealthyWithCapacity(t *testing.T) {
	e := NewExecutor(Config{Capacity: 2})

	checker := NewHealthChecker("test-executor", e)
	result := checker.Check(context.Background())

	if result.Status != health.StatusHealthy {
		t.Errorf("Check().Status = %v, want StatusHealthy", result.Status)
	}
	if checker.Name() != "test-executor" {
		t.Errorf("Name() = %q, want %q", checker.Name(), "test-executor")
	}
}
