// Package queue implements the bounded task queue, the concurrency-bounded
// executor, and the rate-limited executor that compose the AI gateway's
// request-execution core.
//
// # Ecosystem Position
//
// queue sits between the call-event layer and the resilience primitives:
//
//	┌────────────────────────────────────────────────────────────────┐
//	│                      Request Execution Flow                    │
//	├────────────────────────────────────────────────────────────────┤
//	│                                                                  │
//	│  client.Client        queue.RateLimitedExecutor     endpoint    │
//	│  ┌──────────┐        ┌─────────────────────────┐   ┌────────┐  │
//	│  │ Invoke() │───────▶│ Queue + Executor + token │──▶│  Call  │  │
//	│  └──────────┘        │ budget (+ optional       │   └────────┘  │
//	│                      │ resilience.RateLimiter)   │               │
//	│                      └─────────────────────────┘                │
//	└────────────────────────────────────────────────────────────────┘
//
// # Components
//
//   - [Queue]: a FIFO of pending tasks with a resident capacity, a
//     stop/start gate, and a join barrier that waits for both an empty
//     queue and the completion of every task it ever admitted.
//   - [Executor]: runs tasks with a bounded number of concurrent slots,
//     tracking every in-flight task so shutdown can await or cancel them.
//   - [RateLimitedExecutor]: adds per-interval request/token budgets on
//     top of an Executor, replenished by a background goroutine.
//
// Task tracking, shutdown, and cancellation follow a structured,
// explicit-handle discipline: every admitted task is registered with a
// cancel handle until it reaches a terminal state, so Shutdown can first
// await and then cancel stragglers without ever leaking a goroutine.
package queue
