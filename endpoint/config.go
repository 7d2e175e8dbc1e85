package endpoint

import "time"

// Transport selects how Endpoint dispatches a call.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportSDK  Transport = "sdk"
)

// Method is an HTTP method recognized by the HTTP transport.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// Config enumerates every recognized endpoint configuration option.
type Config struct {
	// Name identifies the endpoint for logging, metrics, and cache
	// namespacing.
	Name string

	// Provider is a free-form label for the upstream (e.g. "openai",
	// "anthropic", "internal-search").
	Provider string

	// Transport selects http (generic REST) or sdk (provider-specific
	// dispatch by EndpointPath keyword).
	// Default: TransportHTTP
	Transport Transport

	BaseURL      string
	EndpointPath string
	PathParams   []string

	// Method is the HTTP method used by the HTTP transport.
	// Default: MethodPost
	Method Method

	// TimeoutSeconds bounds each individual call.
	// Default: 600
	TimeoutSeconds int

	// MaxRetries bounds retry attempts on transport/server errors.
	// Negative disables retries entirely.
	// Default: 3
	MaxRetries int

	DefaultHeaders map[string]string

	// AuthTemplate is merged into request headers; values containing the
	// literal "$API_KEY" have it substituted with the resolved credential
	// at call time.
	AuthTemplate map[string]string

	// APIKeyRef is resolved via a secret.Provider/secret.Resolver. Never
	// logged.
	APIKeyRef string

	// OpenAICompatible selects the SDK transport's chat/responses/embed
	// dispatch regardless of Transport, matching providers that speak an
	// OpenAI-shaped API over a generic HTTP base.
	OpenAICompatible bool

	// Extra is forwarded verbatim to the wire call (e.g. model, additional
	// provider-specific parameters).
	Extra map[string]any

	// RequiredFields are keys that must be present in a caller's request
	// payload, the endpoint's declared request schema. A nil/empty slice
	// skips validation.
	RequiredFields []string
}

func (c *Config) applyDefaults() {
	if c.Transport == "" {
		c.Transport = TransportHTTP
	}
	if c.Method == "" {
		c.Method = MethodPost
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 600
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	} else if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
