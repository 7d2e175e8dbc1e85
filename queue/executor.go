package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jonwraymond/aigateway/observe"
)

// PermissionFunc decides whether t may start now. The default always
// grants; RateLimitedExecutor overrides it to check a token/request
// budget before admitting a task.
type PermissionFunc func(ctx context.Context, t Task) (bool, error)

// Option configures an Executor.
type Option func(*Executor)

// WithMaxConcurrency bounds the number of tasks the executor runs at once.
// A value <= 0 leaves the executor unbounded.
func WithMaxConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(int64(n))
			e.maxConcurrency = int64(n)
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l observe.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithPermission overrides the admission check consulted before a task
// runs. Used by RateLimitedExecutor to gate on a token/request budget.
func WithPermission(fn PermissionFunc) Option {
	return func(e *Executor) { e.permission = fn }
}

// Executor runs tasks with a bounded number of concurrent slots, tracking
// every in-flight task so Shutdown can await or cancel them.
//
// Two independent surfaces are exposed: an ad-hoc one (Execute, Map) for
// callers that already hold a func to run, and a queue-backed one (Append,
// Forward, Pop, Process) for callers that hand over Task values to be
// admitted, queued, and later retrieved by id.
type Executor struct {
	queue          *Queue
	sem            *semaphore.Weighted
	maxConcurrency int64
	permission     PermissionFunc
	logger         observe.Logger

	mu      sync.Mutex
	pending []string
	events  map[string]Task
	active  map[string]context.CancelFunc

	activeWG sync.WaitGroup
}

// NewExecutor constructs an Executor backed by a new Queue built from
// queueCfg.
func NewExecutor(queueCfg Config, opts ...Option) *Executor {
	e := &Executor{
		queue:      New(queueCfg),
		events:     make(map[string]Task),
		active:     make(map[string]context.CancelFunc),
		permission: func(context.Context, Task) (bool, error) { return true, nil },
		logger:     observe.NewLogger("info"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Queue returns the backing queue.
func (e *Executor) Queue() *Queue { return e.queue }

func (e *Executor) acquireSlot(ctx context.Context) error {
	if e.sem == nil {
		return nil
	}
	return e.sem.Acquire(ctx, 1)
}

func (e *Executor) releaseSlot() {
	if e.sem != nil {
		e.sem.Release(1)
	}
}

// Execute runs fn within a concurrency slot, blocking until one is free or
// ctx is cancelled.
func (e *Executor) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := e.acquireSlot(ctx); err != nil {
		return err
	}
	defer e.releaseSlot()
	return fn(ctx)
}

// mapResult pairs an index with its outcome so Map can restore input
// order after fan-out.
type mapResult[R any] struct {
	index int
	value R
	err   error
}

// Map runs fn once per item, bounded by the executor's concurrency slots,
// and returns results in the same order as items. The first error
// encountered is returned alongside the partial results collected so far.
func Map[T, R any](ctx context.Context, e *Executor, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	results := make(chan mapResult[R], len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			var res mapResult[R]
			res.index = i
			res.err = e.Execute(ctx, func(ctx context.Context) error {
				v, err := fn(ctx, item)
				res.value = v
				return err
			})
			results <- res
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for res := range results {
		out[res.index] = res.value
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
	}
	return out, firstErr
}

// Append registers t for later admission via Forward. It does not touch
// the queue or start the task.
func (e *Executor) Append(t Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events[t.TaskID()] = t
	e.pending = append(e.pending, t.TaskID())
}

// Forward admits every pending task into the queue, in the order
// appended. It blocks while the queue is at capacity; ctx cancellation
// aborts the remaining admissions, leaving unforwarded ids pending.
func (e *Executor) Forward(ctx context.Context) error {
	e.mu.Lock()
	ids := e.pending
	e.pending = nil
	e.mu.Unlock()

	for i, id := range ids {
		e.mu.Lock()
		t, ok := e.events[id]
		e.mu.Unlock()
		if !ok {
			continue
		}
		if err := e.queue.Enqueue(ctx, t); err != nil {
			e.mu.Lock()
			e.pending = append(e.pending, ids[i:]...)
			e.mu.Unlock()
			return err
		}
	}
	return nil
}

// Pop removes and returns a registered task by id, whether it is still
// pending, queued, or has already run to completion.
func (e *Executor) Pop(id string) (Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.events[id]
	if ok {
		delete(e.events, id)
	}
	return t, ok
}

// Process drains the queue once, up to its current AvailableCapacity,
// starting each admitted task in its own goroutine gated by the
// concurrency slots and the permission hook. It returns once the queue
// has no more immediately available work; callers typically loop Process
// from Run.
func (e *Executor) Process(ctx context.Context) error {
	for {
		if e.queue.AvailableCapacity() <= 0 {
			return nil
		}
		if e.queue.IsEmpty() && e.queue.IsStopped() {
			return nil
		}

		dctx, cancel := context.WithTimeout(ctx, e.queue.RefreshInterval())
		t, err := e.queue.Dequeue(dctx)
		cancel()
		if err != nil {
			if err == context.DeadlineExceeded || err == ErrStopped {
				return nil
			}
			return err
		}

		for {
			granted, permErr := e.permission(ctx, t)
			if permErr != nil {
				e.queue.MarkDone()
				return permErr
			}
			if granted {
				break
			}
			select {
			case <-ctx.Done():
				e.queue.MarkDone()
				return ctx.Err()
			case <-time.After(e.queue.RefreshInterval()):
			}
		}

		if err := e.acquireSlot(ctx); err != nil {
			e.queue.MarkDone()
			return err
		}

		e.queue.SetAvailableCapacity(e.queue.AvailableCapacity() - 1)
		e.runTask(ctx, t)
	}
}

func (e *Executor) runTask(ctx context.Context, t Task) {
	taskCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.active[t.TaskID()] = cancel
	e.mu.Unlock()

	e.activeWG.Add(1)
	go func() {
		defer cancel()
		defer e.activeWG.Done()
		defer e.releaseSlot()
		defer e.queue.MarkDone()
		defer func() {
			e.mu.Lock()
			delete(e.active, t.TaskID())
			e.mu.Unlock()
		}()

		if err := t.Invoke(taskCtx); err != nil {
			e.logger.Debug(ctx, "task interrupted", observe.Field{Key: "task_id", Value: t.TaskID()}, observe.Field{Key: "error", Value: err.Error()})
		}
	}()
}

// Run drives Process in a loop until ctx is cancelled or the queue is
// stopped and fully drained. The queue's capacity gauge is restored to
// its full value once per refresh interval, so each Process pass admits
// at most Capacity tasks per interval.
func (e *Executor) Run(ctx context.Context) error {
	e.queue.Start()
	for {
		if err := e.Process(ctx); err != nil {
			return err
		}
		if e.queue.IsStopped() && e.queue.IsEmpty() && e.activeCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.queue.RefreshInterval()):
		}
		e.queue.SetAvailableCapacity(e.queue.Capacity())
	}
}

func (e *Executor) activeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Shutdown stops admission, waits for in-flight tasks to finish up until
// ctx's deadline, and cancels any still running when the deadline passes.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.queue.Stop()

	done := make(chan struct{})
	go func() {
		e.activeWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.mu.Lock()
		for _, cancel := range e.active {
			cancel()
		}
		e.mu.Unlock()
		<-done
		return ErrShutdownTimeout
	}
}
