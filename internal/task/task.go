// Package task runs read-only analyses over dataset snapshots in the
// background. The store itself performs no internal concurrency: a task
// receives an immutable snapshot, honors cooperative cancellation through
// its context, and delivers exactly one outcome on a channel. Results
// enter the live store only through explicit setters called by the
// coordinator, never from inside a task.
package task

import (
	"context"

	"detlab/internal/dataset"
)

// Func is a background analysis over a snapshot. Implementations must
// check ctx periodically and return ctx.Err() early when cancelled,
// without partial side effects outside their own result value.
type Func[T any] func(ctx context.Context, snap *dataset.Snapshot) (T, error)

// Outcome carries a task's result or its error.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Run executes fn against the snapshot in a new goroutine and returns a
// channel that delivers exactly one Outcome. The channel is buffered, so
// an abandoned result does not leak the goroutine.
func Run[T any](ctx context.Context, snap *dataset.Snapshot, fn Func[T]) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)
	go func() {
		defer close(out)
		if err := ctx.Err(); err != nil {
			out <- Outcome[T]{Err: err}
			return
		}
		value, err := fn(ctx, snap)
		out <- Outcome[T]{Value: value, Err: err}
	}()
	return out
}
