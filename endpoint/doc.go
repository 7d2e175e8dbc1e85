// Package endpoint implements the scoped outbound client bound to a
// single upstream provider: payload assembly, HTTP or SDK transport,
// retry/circuit protection, optional transparent caching, and guaranteed
// resource release.
//
// An Endpoint is entered once (Enter) and called many times (Call)
// before being released (Close); Close is idempotent and safe to call
// from a deferred statement regardless of how the scope was left.
package endpoint
