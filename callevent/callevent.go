package callevent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/aigateway/apierr"
)

// Status is the call event's lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Identifiable exposes a call event's frozen identifier.
type Identifiable interface {
	ID() string
}

// Temporal exposes a call event's creation and last-update timestamps.
type Temporal interface {
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

// Invokable runs the bound call to completion.
type Invokable interface {
	Invoke(ctx context.Context) error
}

// Embeddable produces a flat record suitable for log sinks.
type Embeddable interface {
	ToLog() LogRecord
}

// Caller is the narrow surface a CallEvent needs from whatever it is
// bound to. endpoint.Endpoint satisfies this structurally; callevent
// never imports the endpoint package, so the dependency runs one way.
type Caller interface {
	Call(ctx context.Context, request map[string]any, headers map[string]string, cacheControl bool) (response map[string]any, raw any, err error)
}

type identity struct {
	id uuid.UUID
}

func (i identity) ID() string { return i.id.String() }

type timestamps struct {
	createdAt time.Time
	updatedAt time.Time
}

func (t *timestamps) CreatedAt() time.Time { return t.createdAt }
func (t *timestamps) UpdatedAt() time.Time { return t.updatedAt }
func (t *timestamps) touch()               { t.updatedAt = time.Now() }

type execution struct {
	status       Status
	duration     time.Duration
	hasDuration  bool
	response     map[string]any
	responseObj  any
	errorMessage string
	errorCause   error
	hasError     bool
}

// CallEvent is a mutable per-invocation record: identity and timestamps
// are frozen or monotonic, status makes exactly one terminal transition,
// and response/error are mutually exclusive depending on that outcome.
type CallEvent struct {
	identity
	timestamps

	mu   sync.Mutex
	exec execution

	caller         Caller
	request        map[string]any
	headers        map[string]string
	cacheControl   bool
	requiredTokens *int
}

// Option configures a CallEvent at construction.
type Option func(*CallEvent)

// WithHeaders attaches caller-supplied headers forwarded to the call.
func WithHeaders(h map[string]string) Option {
	return func(e *CallEvent) { e.headers = h }
}

// WithCacheControl requests that the underlying call be wrapped by a
// transparent response cache, if one is configured on the endpoint.
func WithCacheControl(enabled bool) Option {
	return func(e *CallEvent) { e.cacheControl = enabled }
}

// WithRequiredTokens sets a non-negative token cost consulted by a
// rate-limited executor's token budget.
func WithRequiredTokens(n int) Option {
	return func(e *CallEvent) { e.requiredTokens = &n }
}

// New constructs a CallEvent bound to caller with request as its payload.
// Status starts PENDING; id and createdAt are frozen from this point on.
func New(caller Caller, request map[string]any, opts ...Option) *CallEvent {
	now := time.Now()
	e := &CallEvent{
		identity:   identity{id: uuid.New()},
		timestamps: timestamps{createdAt: now, updatedAt: now},
		exec:       execution{status: StatusPending},
		caller:     caller,
		request:    request,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TaskID satisfies queue.Task, delegating to the frozen identifier.
func (e *CallEvent) TaskID() string { return e.ID() }

// RequiredTokens satisfies queue.Task. ok is false when no token cost was
// set at construction.
func (e *CallEvent) RequiredTokens() (tokens int, ok bool) {
	if e.requiredTokens == nil {
		return 0, false
	}
	return *e.requiredTokens, true
}

// CacheControl reports whether this event requested transparent caching.
func (e *CallEvent) CacheControl() bool { return e.cacheControl }

// Headers returns the caller-supplied headers, if any.
func (e *CallEvent) Headers() map[string]string { return e.headers }

// Status reports the event's current lifecycle state.
func (e *CallEvent) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exec.status
}

// Response returns the structured response and true iff status is
// COMPLETED.
func (e *CallEvent) Response() (map[string]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exec.status != StatusCompleted {
		return nil, false
	}
	return e.exec.response, true
}

// ResponseObj returns the raw, untruncated response handle, if any.
func (e *CallEvent) ResponseObj() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exec.responseObj
}

// Error returns the recorded error message and true iff status is
// FAILED.
func (e *CallEvent) Error() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.exec.hasError {
		return "", false
	}
	return e.exec.errorMessage, true
}

// ErrorCause returns the recorded error value when the event FAILED, nil
// otherwise. Unlike Error's flattened message, the cause keeps its type,
// so callers can recover an error kind or a retry-after hint from it.
func (e *CallEvent) ErrorCause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exec.errorCause
}

// Duration returns the elapsed time between PROCESSING and the terminal
// status, and true iff the event has reached a terminal status.
func (e *CallEvent) Duration() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exec.duration, e.exec.hasDuration
}

// Invoke runs the bound call to completion. It never returns an error
// from ordinary failure: the outcome is always recorded on the event
// (status becomes COMPLETED or FAILED). A non-nil return means the
// caller's context was cancelled mid-call; the event is still marked
// FAILED with a cancellation error before the error is re-raised.
func (e *CallEvent) Invoke(ctx context.Context) error {
	e.mu.Lock()
	e.exec.status = StatusProcessing
	e.touch()
	e.mu.Unlock()

	start := time.Now()
	response, raw, err := e.caller.Call(ctx, e.request, e.headers, e.cacheControl)
	duration := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.exec.duration = duration
	e.exec.hasDuration = true
	e.touch()

	if err != nil {
		e.exec.status = StatusFailed
		e.exec.hasError = true
		e.exec.errorMessage = err.Error()
		e.exec.errorCause = err
		if apierr.Is(err, apierr.KindCancelled) || ctx.Err() != nil {
			return err
		}
		return nil
	}

	e.exec.status = StatusCompleted
	e.exec.response = response
	e.exec.responseObj = raw
	return nil
}

// LogRecord is the flat record ToLog produces for external sinks.
type LogRecord struct {
	ID       string
	Created  time.Time
	Updated  time.Time
	Status   Status
	Duration time.Duration
	Error    string
	Content  string
}

// ToLog produces a flat record suitable for structured log sinks: id,
// timestamps, status, duration, error, and a compact content string
// derived from the request and, if present, the response.
func (e *CallEvent) ToLog() LogRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := LogRecord{
		ID:       e.ID(),
		Created:  e.CreatedAt(),
		Updated:  e.UpdatedAt(),
		Status:   e.exec.status,
		Duration: e.exec.duration,
		Content:  summarize(e.request, e.exec.response),
	}
	if e.exec.hasError {
		rec.Error = e.exec.errorMessage
	}
	return rec
}

const summaryLimit = 256

func summarize(request, response map[string]any) string {
	s := fmt.Sprintf("request=%v response=%v", request, response)
	if len(s) > summaryLimit {
		return s[:summaryLimit] + "…"
	}
	return s
}
