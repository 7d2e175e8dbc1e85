// Command aigatewayd fronts a single aigateway endpoint with an inbound
// HTTP surface: API-key/JWT authentication with role-based authorization,
// a /v1/invoke handler backed by the client facade, and
// liveness/readiness/health endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jonwraymond/aigateway/apierr"
	"github.com/jonwraymond/aigateway/auth"
	"github.com/jonwraymond/aigateway/client"
	"github.com/jonwraymond/aigateway/endpoint"
	"github.com/jonwraymond/aigateway/health"
	"github.com/jonwraymond/aigateway/observe"
	"github.com/jonwraymond/aigateway/queue"
	"github.com/jonwraymond/aigateway/resilience"
	"github.com/jonwraymond/aigateway/secret"
)

func main() {
	cfg := configFromEnv()
	logger := observe.NewLogger(cfg.logLevel)

	ep := endpoint.New(endpoint.Config{
		Name:           cfg.upstreamName,
		Provider:       cfg.upstreamProvider,
		Transport:      endpoint.TransportHTTP,
		BaseURL:        cfg.upstreamBaseURL,
		EndpointPath:   cfg.upstreamEndpointPath,
		Method:         endpoint.MethodPost,
		TimeoutSeconds: cfg.requestTimeoutSeconds,
		MaxRetries:     cfg.maxRetries,
		AuthTemplate:   map[string]string{"Authorization": "Bearer $API_KEY"},
		APIKeyRef:      cfg.upstreamAPIKeyRef,
		RequiredFields: []string{},
	},
		endpoint.WithResolver(secret.NewResolver(false)),
		endpoint.WithLogger(logger),
		endpoint.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.circuitMaxFailures,
			ResetTimeout: cfg.circuitResetTimeout,
		})),
	)

	budget := queue.BudgetConfig{LimitRequests: cfg.limitRequests, LimitTokens: cfg.limitTokens, Interval: cfg.refreshInterval}
	if cfg.rateLimit > 0 {
		budget.Limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  cfg.rateLimit,
			Burst: cfg.rateBurst,
		})
	}

	executor := queue.NewRateLimitedExecutor(
		queue.Config{Capacity: cfg.queueCapacity, RefreshInterval: cfg.refreshInterval},
		budget,
		queue.WithMaxConcurrency(cfg.maxConcurrency),
		queue.WithLogger(logger),
	)

	gatewayClient := client.New(ep, executor)

	agg := health.NewAggregator()
	agg.Register("upstream_circuit", endpoint.NewHealthChecker(ep))
	agg.Register("request_queue", queue.NewHealthChecker("request_queue", executor.Executor))
	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))

	authenticator := buildAuthenticator(cfg)
	authorizer := buildAuthorizer()

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	mux.Handle("/v1/invoke", auth.WithAuthHeaders(requireAuth(authenticator, authorizer, cfg.upstreamName, invokeHandler(gatewayClient, logger))))

	srv := &http.Server{
		Addr:         cfg.listenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.requestTimeoutSeconds+30) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("aigatewayd listening on %s", cfg.listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("aigatewayd: %v", err)
		}
	case <-stop:
		log.Print("aigatewayd shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = gatewayClient.Close(shutdownCtx)
}

// invokeHandler decodes a JSON request body as the call payload, runs it
// through the client facade, and responds with the event's terminal state.
func invokeHandler(c *client.Client, logger observe.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var request map[string]any
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid JSON body"})
			return
		}

		event, err := c.Invoke(r.Context(), request)
		if event == nil {
			logger.Error(r.Context(), "invoke failed before a call event was created", observe.Field{Key: "error", Value: err.Error()})
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failureStatus(w.Header(), err))
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		rec := event.ToLog()
		w.Header().Set("Content-Type", "application/json")
		// An Invoke error with a live event means the submission itself
		// failed (drain budget exhausted, queue rejected the task); the
		// event may never reach a terminal status, so it cannot carry
		// the failure on its own.
		switch {
		case err != nil:
			w.WriteHeader(failureStatus(w.Header(), err))
			if rec.Error == "" {
				rec.Error = err.Error()
			}
		case rec.Error != "":
			w.WriteHeader(failureStatus(w.Header(), event.ErrorCause()))
		default:
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       rec.ID,
			"status":   rec.Status,
			"duration": rec.Duration.String(),
			"error":    rec.Error,
			"response": event.ResponseObj(),
		})
	}
}

// failureStatus maps a failed event's error kind onto the response
// status, forwarding the upstream's Retry-After hint on rate-limit and
// breaker-open failures instead of flattening everything to 502.
func failureStatus(h http.Header, cause error) int {
	var apiErr *apierr.Error
	if !errors.As(cause, &apiErr) {
		return http.StatusBadGateway
	}
	if apiErr.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(int(math.Ceil(apiErr.RetryAfter.Seconds()))))
	}
	switch apiErr.Kind {
	case apierr.KindRateLimit:
		return http.StatusTooManyRequests
	case apierr.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case apierr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// requireAuth gates next behind the authenticator and authorizer,
// rejecting unauthenticated requests with 401 and authenticated-but-
// unauthorized ones with 403 before the handler ever sees them.
func requireAuth(authenticator auth.Authenticator, authorizer auth.Authorizer, endpointName string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := &auth.AuthRequest{Headers: r.Header}
		result, err := authenticator.Authenticate(r.Context(), req)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !result.Authenticated {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := authorizer.Authorize(r.Context(), &auth.AuthzRequest{
			Subject:      result.Identity,
			Resource:     "endpoint:" + endpointName,
			Action:       "invoke",
			ResourceType: "endpoint",
		}); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		ctx := auth.WithIdentity(r.Context(), result.Identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// buildAuthenticator accepts API keys always, and bearer JWTs when a
// signing secret is configured, combined so either credential admits a
// request.
func buildAuthenticator(cfg config) auth.Authenticator {
	store := auth.NewMemoryAPIKeyStore()
	registerKeys(store, cfg.apiKeys, "api-key-client", []string{"invoke"})
	registerKeys(store, cfg.adminAPIKeys, "api-key-admin", []string{"admin"})
	apiKeyAuth := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store)

	if cfg.jwtSecret == "" {
		return apiKeyAuth
	}
	// No RolesClaim: a JWT caller's identity carries no roles, so the
	// authorizer's default role applies uniformly. Role escalation is an
	// API-key concern (keys are registered with explicit roles).
	jwtAuth := auth.NewJWTAuthenticator(auth.JWTConfig{
		Issuer:   cfg.jwtIssuer,
		Audience: cfg.jwtAudience,
	}, auth.NewStaticKeyProvider([]byte(cfg.jwtSecret)))
	return auth.NewCompositeAuthenticator(apiKeyAuth, jwtAuth)
}

func registerKeys(store *auth.MemoryAPIKeyStore, keys []string, principal string, roles []string) {
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		_ = store.Add(&auth.APIKeyInfo{
			ID:        auth.HashAPIKey(key)[:12],
			KeyHash:   auth.HashAPIKey(key),
			Principal: principal,
			Roles:     roles,
		})
	}
}

// buildAuthorizer grants any authenticated caller the invoke action on
// gateway endpoints; keys registered under AUTH_ADMIN_API_KEYS carry the
// "admin" role and may additionally reach internal endpoints.
func buildAuthorizer() auth.Authorizer {
	return auth.NewSimpleRBACAuthorizer(auth.RBACConfig{
		Roles: map[string]auth.RoleConfig{
			"invoke": {
				Permissions:     []string{"endpoint:*:invoke"},
				DeniedEndpoints: []string{"internal_*"},
			},
			"admin": {
				AllowedEndpoints: []string{"*"},
				AllowedActions:   []string{"*"},
			},
		},
		DefaultRole: "invoke",
	})
}

type config struct {
	listenAddr            string
	logLevel              string
	upstreamName          string
	upstreamProvider      string
	upstreamBaseURL       string
	upstreamEndpointPath  string
	upstreamAPIKeyRef     string
	requestTimeoutSeconds int
	maxRetries            int
	circuitMaxFailures    int
	circuitResetTimeout   time.Duration
	queueCapacity         int
	refreshInterval       time.Duration
	maxConcurrency        int
	limitRequests         int
	limitTokens           int
	rateLimit             float64
	rateBurst             int
	apiKeys               []string
	adminAPIKeys          []string
	jwtSecret             string
	jwtIssuer             string
	jwtAudience           string
}

func configFromEnv() config {
	return config{
		listenAddr:            envOr("LISTEN_ADDR", ":8080"),
		logLevel:              envOr("LOG_LEVEL", "info"),
		upstreamName:          envOr("UPSTREAM_NAME", "default"),
		upstreamProvider:      envOr("UPSTREAM_PROVIDER", "generic"),
		upstreamBaseURL:       envOr("UPSTREAM_BASE_URL", ""),
		upstreamEndpointPath:  envOr("UPSTREAM_ENDPOINT_PATH", "/v1/chat/completions"),
		upstreamAPIKeyRef:     envOr("UPSTREAM_API_KEY_REF", "$UPSTREAM_API_KEY"),
		requestTimeoutSeconds: envOrInt("REQUEST_TIMEOUT_SECONDS", 600),
		maxRetries:            envOrRetries("MAX_RETRIES", 3),
		circuitMaxFailures:    envOrInt("CIRCUIT_MAX_FAILURES", 5),
		circuitResetTimeout:   envOrDuration("CIRCUIT_RESET_TIMEOUT", 30*time.Second),
		queueCapacity:         envOrInt("QUEUE_CAPACITY", 100),
		refreshInterval:       envOrDuration("REFRESH_INTERVAL", time.Second),
		maxConcurrency:        envOrInt("MAX_CONCURRENCY", 10),
		limitRequests:         envOrInt("LIMIT_REQUESTS", 0),
		limitTokens:           envOrInt("LIMIT_TOKENS", 0),
		rateLimit:             envOrFloat("RATE_LIMIT_PER_SECOND", 0),
		rateBurst:             envOrInt("RATE_LIMIT_BURST", 0),
		apiKeys:               strings.Split(envOr("AUTH_API_KEYS", ""), ","),
		adminAPIKeys:          strings.Split(envOr("AUTH_ADMIN_API_KEYS", ""), ","),
		jwtSecret:             envOr("AUTH_JWT_SECRET", ""),
		jwtIssuer:             envOr("AUTH_JWT_ISSUER", ""),
		jwtAudience:           envOr("AUTH_JWT_AUDIENCE", ""),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envOrInt rejects unparsable values at startup rather than silently
// falling back: a typo in a budget knob (e.g. LIMIT_REQUESTS=1OO) would
// otherwise disable the corresponding limit.
func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("aigatewayd: %s=%q is not an integer: %v", key, v, err)
	}
	return n
}

// envOrFloat reads a fractional knob (e.g. requests per second). A value
// that does not parse is rejected at startup rather than silently
// falling back, since a typo here would otherwise disable rate shaping.
func envOrFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("aigatewayd: %s=%q is not a number: %v", key, v, err)
	}
	return f
}

// envOrRetries reads a retry count, translating an explicit 0 to the
// config layer's disable sentinel (a zero Config.MaxRetries means "use
// the default", so MAX_RETRIES=0 must not silently become 3 retries).
func envOrRetries(key string, fallback int) int {
	if n := envOrInt(key, fallback); n != 0 {
		return n
	}
	return -1
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("aigatewayd: %s=%q is not a duration: %v", key, v, err)
	}
	return d
}
