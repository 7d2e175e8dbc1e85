package endpoint

import (
	"context"
	"errors"

	"github.com/jonwraymond/aigateway/apierr"
	"github.com/jonwraymond/aigateway/resilience"
)

// callSDK dispatches by EndpointPath keyword: "chat" selects chat
// completion, "responses" selects the responses API, "embed" selects
// embeddings. A concrete SDKCaller decides, from the presence of a
// "response_format" key in payload, whether to call the structured or
// plain variant of chat/responses; that dispatch is the SDKCaller's
// responsibility, not this package's, since it is provider-specific.
//
// The SDK transport carries no deadline of its own (unlike the HTTP
// transport, whose pooled client is constructed with one), so the
// configured per-call timeout is applied here.
func (e *Endpoint) callSDK(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if e.sdk == nil {
		return nil, apierr.New(apierr.KindConfig, "sdk transport selected but no SDKCaller configured")
	}

	var resp map[string]any
	err := resilience.ExecuteWithTimeout(ctx, e.cfg.timeout(), func(ctx context.Context) error {
		var callErr error
		switch e.cfg.EndpointPath {
		case "chat":
			resp, callErr = e.sdk.Chat(ctx, payload)
		case "responses":
			resp, callErr = e.sdk.Responses(ctx, payload)
		case "embed":
			resp, callErr = e.sdk.Embed(ctx, payload)
		default:
			callErr = apierr.New(apierr.KindConfig, "unrecognized sdk endpoint_path: "+e.cfg.EndpointPath)
		}
		return callErr
	})
	if errors.Is(err, resilience.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return nil, apierr.Wrap(apierr.KindTimeout, e.cfg.Name+" call deadline exceeded", err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
