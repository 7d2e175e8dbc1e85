package queue

import (
	"context"
	"fmt"

	"github.com/jonwraymond/aigateway/health"
)

// executorChecker reports an Executor's queue depth and in-flight task
// count as a health.Checker, making "no work left behind after shutdown"
// observable from outside the package.
type executorChecker struct {
	name string
	e    *Executor
}

// NewHealthChecker wraps e as a health.Checker named name. It reports
// degraded once the queue's available-capacity gauge reaches zero, i.e.
// the executor has used up its admission batch for the current interval.
// That gauge does not govern whether Enqueue blocks.
func NewHealthChecker(name string, e *Executor) health.Checker {
	return &executorChecker{name: name, e: e}
}

func (c *executorChecker) Name() string { return c.name }

func (c *executorChecker) Check(_ context.Context) health.Result {
	available := c.e.queue.AvailableCapacity()
	active := c.e.activeCount()
	details := map[string]any{
		"available_capacity": available,
		"active_tasks":       active,
		"stopped":            c.e.queue.IsStopped(),
	}

	if available <= 0 {
		return health.Degraded(fmt.Sprintf("%s queue has no available capacity", c.name)).WithDetails(details)
	}
	return health.Healthy(fmt.Sprintf("%s accepting work", c.name)).WithDetails(details)
}
