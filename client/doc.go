// Package client provides the facade a caller uses to run a single request
// to completion: Invoke wires a callevent.CallEvent to a
// queue.RateLimitedExecutor and blocks until it reaches a terminal status,
// enforcing a bounded poll budget instead of an unbounded wait.
package client
