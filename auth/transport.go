package auth

import "net/http"

// WithAuthHeaders is HTTP middleware that extracts request headers
// into the context for use by authentication middleware.
//
// The gateway daemon wraps its /v1/invoke handler with it, so the
// authenticators can read Authorization and X-API-Key without holding a
// reference to the *http.Request.
//
// Usage:
//
//	mux.Handle("/v1/invoke", auth.WithAuthHeaders(invokeHandler))
func WithAuthHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract all headers into context
		ctx := WithHeaders(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
