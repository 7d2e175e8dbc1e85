// Package callevent implements the per-invocation lifecycle object that
// the client facade returns for every call: a mutable record of identity,
// timestamps, and the terminal outcome of exactly one endpoint
// invocation.
//
// A CallEvent is composed, not inherited: an embedded identity carries a
// frozen id, an embedded timestamp pair tracks creation and last update,
// and an embedded execution record holds status/response/error/duration.
// Each trait is exposed as a narrow interface (Identifiable, Temporal,
// Invokable, Embeddable) so callers can depend on only the slice of
// behavior they need.
package callevent
