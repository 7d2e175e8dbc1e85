package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/aigateway/apierr"
	"github.com/jonwraymond/aigateway/resilience"
)

// retryBaseDelay is the first retry's backoff; tests shrink it via the
// retryDelay field so a retried request doesn't stall a test run for a
// full second.
func (e *Endpoint) retryBaseDelay() time.Duration {
	if e.retryDelay > 0 {
		return e.retryDelay
	}
	return time.Second
}

// callHTTP executes payload against BaseURL+EndpointPath using Method,
// retrying on transport/server errors with exponential backoff (2^k
// seconds) up to MaxRetries.
func (e *Endpoint) callHTTP(ctx context.Context, payload map[string]any, headers map[string]string) (map[string]any, any, error) {
	e.mu.Lock()
	client := e.httpClient
	e.mu.Unlock()
	if client == nil {
		return nil, nil, apierr.New(apierr.KindConfig, "endpoint not entered; call Enter before Call")
	}

	url, body := e.resolvePath(payload)

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  e.cfg.MaxRetries + 1,
		InitialDelay: e.retryBaseDelay(),
		Multiplier:   2,
		Strategy:     resilience.BackoffExponential,
		Jitter:       false,
		ExcludeIf: func(err error) bool {
			switch apierr.KindOf(err) {
			case apierr.KindTransport, apierr.KindServer:
				return false
			default:
				// Only transport and server errors are retried here; a 429
				// surfaces to the caller with its RetryAfter intact rather
				// than being absorbed by this layer's backoff.
				return true
			}
		},
	})

	var response map[string]any
	var rawBody []byte

	err := retry.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, string(e.cfg.Method), url, bytes.NewReader(body))
		if err != nil {
			return apierr.Wrap(apierr.KindInternal, "failed to build request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return apierr.Wrap(apierr.KindCancelled, "request cancelled", ctx.Err())
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return apierr.Wrap(apierr.KindTimeout, "request deadline exceeded", err)
			}
			return apierr.Wrap(apierr.KindTransport, "request failed", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return apierr.Wrap(apierr.KindTransport, "failed to read response body", err)
		}

		if kind, ok := httpErrorKind(resp.StatusCode); ok {
			return apierr.New(kind, fmt.Sprintf("upstream returned status %d", resp.StatusCode)).WithRetryAfter(retryAfter(resp))
		}

		rawBody = data
		if len(data) > 0 {
			if err := json.Unmarshal(data, &response); err != nil {
				return apierr.Wrap(apierr.KindInternal, "failed to parse response JSON", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return response, rawBody, nil
}

// httpErrorKind classifies a status code into the error taxonomy. ok is
// false for 2xx, which is not an error.
func httpErrorKind(status int) (apierr.Kind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == 401 || status == 403:
		return apierr.KindAuth, true
	case status == 404:
		return apierr.KindNotFound, true
	case status == 429:
		return apierr.KindRateLimit, true
	case status >= 500:
		return apierr.KindServer, true
	case status >= 400:
		return apierr.KindValidation, true
	default:
		return apierr.KindTransport, true
	}
}

// retryAfter reads the Retry-After header, accepting both delta-seconds
// and HTTP-date forms.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs >= 0 {
		const maxSecs = math.MaxInt64 / int64(time.Second)
		if secs > maxSecs {
			secs = maxSecs
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// resolvePath substitutes PathParams placeholders ("{name}") in
// EndpointPath from payload, then marshals whatever remains of payload
// as the JSON body.
func (e *Endpoint) resolvePath(payload map[string]any) (string, []byte) {
	path := e.cfg.EndpointPath
	body := make(map[string]any, len(payload))
	for k, v := range payload {
		body[k] = v
	}
	for _, name := range e.cfg.PathParams {
		if v, ok := body[name]; ok {
			path = strings.ReplaceAll(path, "{"+name+"}", fmt.Sprint(v))
			delete(body, name)
		}
	}

	data, _ := json.Marshal(body)
	return e.cfg.BaseURL + path, data
}
