// Package auth provides authentication and authorization for the gateway's
// inbound surface.
//
// It supports API-key and JWT authentication (composable via
// CompositeAuthenticator) and role-based access control over gateway
// endpoints (SimpleRBACAuthorizer). The package is protocol-agnostic and
// can be used with any transport layer.
package auth
