package client

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/aigateway/apierr"
	"github.com/jonwraymond/aigateway/callevent"
	"github.com/jonwraymond/aigateway/endpoint"
	"github.com/jonwraymond/aigateway/queue"
)

// DefaultDrainIterations bounds how many times Invoke polls a submitted
// event for a terminal status before giving up.
const DefaultDrainIterations = 1000

// DefaultDrainInterval is the yield between successive drain polls.
const DefaultDrainInterval = 100 * time.Millisecond

// Option configures a Client at construction.
type Option func(*Client)

// WithDrainBudget overrides the default poll budget Invoke uses while
// waiting for a submitted event to reach a terminal status.
func WithDrainBudget(iterations int, interval time.Duration) Option {
	return func(c *Client) {
		if iterations > 0 {
			c.drainIterations = iterations
		}
		if interval > 0 {
			c.drainInterval = interval
		}
	}
}

// Client is the facade a caller uses to run one request to completion: it
// binds an endpoint to a rate-limited executor and drives a call event
// through ENTER, CONFIGURE, SUBMIT, DRAIN, and RETURN on every Invoke.
//
// A Client may be used for many sequential Invoke calls; the executor's
// background runner and replenisher start on the first Invoke and keep
// running until Close. Close is idempotent.
type Client struct {
	endpoint *endpoint.Endpoint
	executor *queue.RateLimitedExecutor

	drainIterations int
	drainInterval   time.Duration

	mu        sync.Mutex
	entered   bool
	closed    bool
	runCancel context.CancelFunc
	runDone   chan struct{}
}

// New binds ep (the target endpoint) to executor (the rate-limited
// executor Invoke submits through). Neither is entered until the first
// Invoke.
func New(ep *endpoint.Endpoint, executor *queue.RateLimitedExecutor, opts ...Option) *Client {
	c := &Client{
		endpoint:        ep,
		executor:        executor,
		drainIterations: DefaultDrainIterations,
		drainInterval:   DefaultDrainInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// enter starts the executor's background runner and replenisher exactly
// once, and enters the endpoint's transport scope.
func (c *Client) enter(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apierr.New(apierr.KindConfig, "client already closed")
	}
	if err := c.endpoint.Enter(ctx); err != nil {
		return err
	}
	if c.entered {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.runCancel = cancel
	c.runDone = make(chan struct{})
	c.executor.Start(runCtx)
	go func() {
		defer close(c.runDone)
		_ = c.executor.Run(runCtx)
	}()
	c.entered = true
	return nil
}

// Close stops the executor's background runner and replenisher and
// releases the endpoint's transport client. Idempotent: a second Close is
// a no-op. It always runs to completion, even if ctx is already cancelled.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	entered := c.entered
	runCancel := c.runCancel
	runDone := c.runDone
	c.mu.Unlock()

	if entered {
		c.executor.Stop()
		runCancel()
		<-runDone
	}
	return c.endpoint.Close()
}

// Invoke constructs a call event bound to the configured endpoint, submits
// it to the rate-limited executor, and waits for it to reach a terminal
// status. It always returns the event (never the raw response), so the
// caller reads status/error/duration/response uniformly. If the drain
// budget is exhausted before the event terminates, Invoke returns the
// event alongside an apierr.KindTimeout error; the event still records its
// last known status.
func (c *Client) Invoke(ctx context.Context, request map[string]any, opts ...callevent.Option) (*callevent.CallEvent, error) {
	if c.endpoint == nil {
		return nil, apierr.New(apierr.KindConfig, "client has no endpoint configured")
	}

	// ENTER
	if err := c.enter(ctx); err != nil {
		return nil, err
	}

	// CONFIGURE
	event := callevent.New(c.endpoint, request, opts...)

	// SUBMIT
	if err := c.executor.Append(event); err != nil {
		return event, err
	}
	defer c.executor.Pop(event.TaskID())
	if err := c.executor.Forward(ctx); err != nil {
		return event, err
	}

	// DRAIN
	for i := 0; i < c.drainIterations; i++ {
		switch event.Status() {
		case callevent.StatusCompleted, callevent.StatusFailed:
			return event, nil
		}
		select {
		case <-ctx.Done():
			return event, apierr.Wrap(apierr.KindCancelled, "invoke cancelled while draining", ctx.Err())
		case <-time.After(c.drainInterval):
		}
	}

	// RETURN (budget exhausted)
	switch event.Status() {
	case callevent.StatusCompleted, callevent.StatusFailed:
		return event, nil
	default:
		return event, apierr.New(apierr.KindTimeout, "drain budget exhausted before event reached a terminal status")
	}
}
