package queue

import "errors"

// ErrStopped is returned by Enqueue/Dequeue once a Queue has been stopped.
var ErrStopped = errors.New("queue: stopped")

// ErrShutdownTimeout is returned by Executor.Shutdown when in-flight tasks
// do not finish before the deadline and are cancelled instead.
var ErrShutdownTimeout = errors.New("executor: shutdown deadline exceeded, in-flight tasks cancelled")
