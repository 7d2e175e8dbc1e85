package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/aigateway/apierr"
	"github.com/jonwraymond/aigateway/cache"
	"github.com/jonwraymond/aigateway/observe"
	"github.com/jonwraymond/aigateway/resilience"
	"github.com/jonwraymond/aigateway/secret"
)

// Option configures an Endpoint at construction.
type Option func(*Endpoint)

// WithResolver attaches the credential resolver used for APIKeyRef.
func WithResolver(r *secret.Resolver) Option {
	return func(e *Endpoint) { e.resolver = r }
}

// WithCache enables transparent response caching keyed on
// (payload, headers) when a call sets CacheControl.
func WithCache(c cache.Cache, keyer cache.Keyer, policy cache.Policy) Option {
	return func(e *Endpoint) {
		e.cache = c
		e.keyer = keyer
		e.cachePolicy = policy
		e.cacheMiddleware = cache.NewCacheMiddleware(c, keyer, policy, nil)
	}
}

// WithCircuitBreaker wraps every call with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Endpoint) { e.breaker = cb }
}

// WithMiddleware instruments every call with tracing/metrics/logging.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(e *Endpoint) { e.middleware = mw }
}

// WithLogger attaches a structured logger, used when no Middleware is
// configured.
func WithLogger(l observe.Logger) Option {
	return func(e *Endpoint) { e.logger = l }
}

// WithSDKCaller installs the dispatcher used for TransportSDK (or
// OpenAICompatible) calls; chat/responses/embed dispatch by
// EndpointPath keyword.
func WithSDKCaller(c SDKCaller) Option {
	return func(e *Endpoint) { e.sdk = c }
}

// SDKCaller is the pluggable provider-SDK dispatch surface for the SDK
// transport. A real deployment supplies one built on the provider's own
// client library; the core never requires a specific SDK.
type SDKCaller interface {
	Chat(ctx context.Context, payload map[string]any) (map[string]any, error)
	Responses(ctx context.Context, payload map[string]any) (map[string]any, error)
	Embed(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// Endpoint is the scoped outbound client bound to one upstream provider.
// It owns its transport client exclusively: Enter lazily constructs it,
// Close releases it, and Close is idempotent.
type Endpoint struct {
	cfg Config

	resolver        *secret.Resolver
	cache           cache.Cache
	keyer           cache.Keyer
	cachePolicy     cache.Policy
	cacheMiddleware *cache.CacheMiddleware
	breaker         *resilience.CircuitBreaker
	middleware      *observe.Middleware
	logger          observe.Logger
	sdk             SDKCaller

	// retryDelay overrides the HTTP transport's base backoff; zero means
	// the one-second default.
	retryDelay time.Duration

	mu         sync.Mutex
	httpClient *http.Client
	closed     bool
}

// New constructs an Endpoint from cfg, applying defaults. The transport
// client is not constructed until Enter.
func New(cfg Config, opts ...Option) *Endpoint {
	cfg.applyDefaults()
	e := &Endpoint{
		cfg:         cfg,
		cachePolicy: cache.NoCachePolicy(),
		logger:      observe.NewLogger("info"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the endpoint's configured name.
func (e *Endpoint) Name() string { return e.cfg.Name }

// Enter lazily constructs the transport client. Safe to call more than
// once; only the first call after construction (or after Close) has an
// effect.
func (e *Endpoint) Enter(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = false
	if e.cfg.Transport != TransportHTTP || e.cfg.OpenAICompatible {
		return nil
	}
	if e.httpClient != nil {
		return nil
	}
	e.httpClient = &http.Client{
		Timeout: e.cfg.timeout(),
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return nil
}

// Close releases the transport client. Idempotent: a second Close is a
// no-op, not an error. It takes no context and always runs to
// completion.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.httpClient != nil {
		e.httpClient.CloseIdleConnections()
		e.httpClient = nil
	}
	return nil
}

// Call builds the outgoing payload, executes it via the configured
// transport (optionally through caching, circuit breaking, and retry),
// and returns the structured response and a raw response handle.
//
// Call satisfies callevent.Caller structurally.
func (e *Endpoint) Call(ctx context.Context, request map[string]any, headers map[string]string, cacheControl bool) (map[string]any, any, error) {
	if e.cfg.Name == "" {
		return nil, nil, apierr.New(apierr.KindConfig, "endpoint has no name")
	}
	if err := e.validate(request); err != nil {
		return nil, nil, err
	}

	payload, mergedHeaders, err := e.assemble(ctx, request, headers)
	if err != nil {
		return nil, nil, err
	}

	run := func(ctx context.Context) (map[string]any, any, error) {
		if cacheControl && e.cache != nil && e.keyer != nil {
			return e.dispatchCached(ctx, payload, mergedHeaders)
		}
		return e.dispatch(ctx, payload, mergedHeaders)
	}

	if e.breaker != nil {
		var resp map[string]any
		var raw any
		cbErr := e.breaker.Execute(ctx, func(ctx context.Context) error {
			var runErr error
			resp, raw, runErr = run(ctx)
			return runErr
		})
		if cbErr != nil {
			if errors.Is(cbErr, resilience.ErrCircuitOpen) {
				return nil, nil, apierr.Wrap(apierr.KindCircuitOpen, e.cfg.Name+" circuit open", cbErr).
					WithRetryAfter(e.breaker.RetryAfter())
			}
			return nil, nil, cbErr
		}
		return resp, raw, nil
	}

	return run(ctx)
}

func (e *Endpoint) validate(request map[string]any) error {
	for _, field := range e.cfg.RequiredFields {
		if _, ok := request[field]; !ok {
			return apierr.New(apierr.KindValidation, fmt.Sprintf("missing required field %q", field))
		}
	}
	return nil
}

// assemble merges default headers, the auth template (with $API_KEY
// substituted), and caller headers, in that precedence order (caller
// wins). Extra config fields are merged into the payload.
func (e *Endpoint) assemble(ctx context.Context, request map[string]any, callerHeaders map[string]string) (map[string]any, map[string]string, error) {
	payload := make(map[string]any, len(request)+len(e.cfg.Extra))
	for k, v := range e.cfg.Extra {
		payload[k] = v
	}
	for k, v := range request {
		payload[k] = v
	}

	headers := make(map[string]string, len(e.cfg.DefaultHeaders)+len(e.cfg.AuthTemplate)+len(callerHeaders))
	for k, v := range e.cfg.DefaultHeaders {
		headers[k] = v
	}

	apiKey, err := e.resolveAPIKey(ctx)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range e.cfg.AuthTemplate {
		headers[k] = substituteAPIKey(v, apiKey)
	}

	for k, v := range callerHeaders {
		headers[k] = v
	}

	return payload, headers, nil
}

const apiKeyPlaceholder = "$API_KEY"

func substituteAPIKey(template, apiKey string) string {
	return strings.ReplaceAll(template, apiKeyPlaceholder, apiKey)
}

// resolveAPIKey resolves APIKeyRef through the configured resolver. With
// no resolver, the ref is used verbatim as the credential, so a literal
// key still works in minimal setups — unless the ref is a provider
// reference, which must never be sent upstream unresolved.
func (e *Endpoint) resolveAPIKey(ctx context.Context) (string, error) {
	if e.cfg.APIKeyRef == "" {
		return "", nil
	}
	if e.resolver == nil {
		if strings.HasPrefix(e.cfg.APIKeyRef, secret.RefPrefix) || strings.Contains(e.cfg.APIKeyRef, "$") {
			return "", apierr.New(apierr.KindConfig, "api_key_ref requires a credential resolver to resolve")
		}
		return e.cfg.APIKeyRef, nil
	}
	key, err := e.resolver.ResolveValue(ctx, e.cfg.APIKeyRef)
	if err != nil {
		return "", apierr.Wrap(apierr.KindConfig, "failed to resolve api_key_ref", err)
	}
	return key, nil
}

// dispatchCached wraps dispatch with the configured response cache, keyed
// on (payload, headers). A cache hit never reaches the transport; a miss
// dispatches normally and, on success, stores the structured response.
// The raw response handle is never cached: a hit returns the structured
// response as its own raw value.
func (e *Endpoint) dispatchCached(ctx context.Context, payload map[string]any, headers map[string]string) (map[string]any, any, error) {
	keyInput := map[string]any{"payload": payload, "headers": headers}

	var raw any
	data, err := e.cacheMiddleware.Execute(ctx, e.cfg.Name, keyInput, nil, func(ctx context.Context, _ string, _ any) ([]byte, error) {
		resp, r, err := e.dispatch(ctx, payload, headers)
		if err != nil {
			return nil, err
		}
		raw = r
		return json.Marshal(resp)
	})
	if err != nil {
		return nil, nil, err
	}

	var resp map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, nil, apierr.Wrap(apierr.KindInternal, "failed to parse cached response", err)
		}
	}
	if raw == nil {
		raw = resp
	}
	return resp, raw, nil
}

// dispatch routes to the configured transport, optionally wrapped by
// the observe middleware.
func (e *Endpoint) dispatch(ctx context.Context, payload map[string]any, headers map[string]string) (map[string]any, any, error) {
	call := func(ctx context.Context) (map[string]any, any, error) {
		if e.cfg.Transport == TransportSDK || e.cfg.OpenAICompatible {
			resp, err := e.callSDK(ctx, payload)
			return resp, resp, err
		}
		return e.callHTTP(ctx, payload, headers)
	}

	if e.middleware != nil {
		meta := observe.CallMeta{Name: e.cfg.Name, Category: "endpoint", Namespace: e.cfg.Provider}
		var raw any
		wrapped := e.middleware.Wrap(func(ctx context.Context, _ observe.CallMeta, _ any) (any, error) {
			resp, r, err := call(ctx)
			raw = r
			return resp, err
		})
		result, err := wrapped(ctx, meta, payload)
		if err != nil {
			return nil, raw, err
		}
		resp, _ := result.(map[string]any)
		return resp, raw, nil
	}

	return call(ctx)
}
