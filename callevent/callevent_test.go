package callevent

import (
	"context"
	"errors"
	"testing"

	"github.com/jonwraymond/aigateway/apierr"
)

type stubCaller struct {
	response map[string]any
	raw      any
	err      error
}

func (c *stubCaller) Call(ctx context.Context, request map[string]any, headers map[string]string, cacheControl bool) (map[string]any, any, error) {
	return c.response, c.raw, c.err
}

func TestCallEvent_InvokeSuccess(t *testing.T) {
	caller := &stubCaller{response: map[string]any{"ok": true}, raw: "raw"}
	e := New(caller, map[string]any{"q": "hello"})

	if got := e.Status(); got != StatusPending {
		t.Fatalf("initial Status() = %v, want PENDING", got)
	}

	if err := e.Invoke(context.Background()); err != nil {
		t.Fatalf("Invoke() error = %v, want nil", err)
	}

	if got := e.Status(); got != StatusCompleted {
		t.Errorf("Status() = %v, want COMPLETED", got)
	}
	resp, ok := e.Response()
	if !ok || resp["ok"] != true {
		t.Errorf("Response() = (%v, %v), want ({ok:true}, true)", resp, ok)
	}
	if e.ResponseObj() != "raw" {
		t.Errorf("ResponseObj() = %v, want %q", e.ResponseObj(), "raw")
	}
	if _, ok := e.Duration(); !ok {
		t.Error("Duration() ok = false after terminal status, want true")
	}
	if _, ok := e.Error(); ok {
		t.Error("Error() ok = true on a completed event, want false")
	}
}

func TestCallEvent_InvokeFailure(t *testing.T) {
	caller := &stubCaller{err: apierr.New(apierr.KindTransport, "connection reset")}
	e := New(caller, nil)

	if err := e.Invoke(context.Background()); err != nil {
		t.Fatalf("Invoke() error = %v, want nil (failure is recorded, not returned)", err)
	}

	if got := e.Status(); got != StatusFailed {
		t.Errorf("Status() = %v, want FAILED", got)
	}
	if _, ok := e.Response(); ok {
		t.Error("Response() ok = true on a failed event, want false")
	}
	msg, ok := e.Error()
	if !ok || msg == "" {
		t.Errorf("Error() = (%q, %v), want a non-empty message", msg, ok)
	}

	var apiErr *apierr.Error
	if !errors.As(e.ErrorCause(), &apiErr) || apiErr.Kind != apierr.KindTransport {
		t.Errorf("ErrorCause() = %v, want the typed KindTransport error", e.ErrorCause())
	}
}

func TestCallEvent_InvokeReraisesCancellation(t *testing.T) {
	caller := &stubCaller{err: apierr.New(apierr.KindCancelled, "scope cancelled")}
	e := New(caller, nil)

	err := e.Invoke(context.Background())
	if !errors.Is(err, apierr.ErrCancelled) {
		t.Errorf("Invoke() error = %v, want a cancellation error re-raised", err)
	}
	if got := e.Status(); got != StatusFailed {
		t.Errorf("Status() = %v, want FAILED even when cancellation is re-raised", got)
	}
}

func TestCallEvent_RequiredTokens(t *testing.T) {
	e := New(&stubCaller{}, nil)
	if _, ok := e.RequiredTokens(); ok {
		t.Error("RequiredTokens() ok = true without WithRequiredTokens, want false")
	}

	e2 := New(&stubCaller{}, nil, WithRequiredTokens(42))
	tokens, ok := e2.RequiredTokens()
	if !ok || tokens != 42 {
		t.Errorf("RequiredTokens() = (%d, %v), want (42, true)", tokens, ok)
	}
}

func TestCallEvent_ToLog(t *testing.T) {
	caller := &stubCaller{response: map[string]any{"ok": true}}
	e := New(caller, map[string]any{"q": "hi"})
	_ = e.Invoke(context.Background())

	rec := e.ToLog()
	if rec.ID != e.ID() {
		t.Errorf("ToLog().ID = %q, want %q", rec.ID, e.ID())
	}
	if rec.Status != StatusCompleted {
		t.Errorf("ToLog().Status = %v, want COMPLETED", rec.Status)
	}
	if rec.Content == "" {
		t.Error("ToLog().Content is empty, want a derived summary")
	}
}
