// Package apierr defines the error taxonomy shared by the endpoint,
// call event, and client facade packages.
//
// Every exported error is a *Error wrapping a Kind and an optional
// underlying cause. Callers should use errors.As to recover a *Error and
// inspect its Kind, or errors.Is against the package-level sentinels for
// kind-only checks.
package apierr
