package pool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// waiter is a one-shot FIFO signal, used instead of a condition-variable
// broadcast specifically to preserve wakeup order — a broadcast wakes every
// blocked goroutine at once and leaves them to race for the lock, which
// gives no ordering guarantee at all. A dedicated semaphore per waiter,
// released exactly once by whichever pool operation frees capacity, wakes
// exactly the goroutine at the front of the queue.
type waiter struct {
	sem *semaphore.Weighted
}

func newWaiter() *waiter {
	w := &waiter{sem: semaphore.NewWeighted(1)}
	// Drain the single permit immediately so the first wait() call blocks
	// until someone else calls signal().
	_ = w.sem.Acquire(context.Background(), 1)
	return w
}

// wait blocks until signal() is called or ctx is done.
func (w *waiter) wait(ctx context.Context) error {
	return w.sem.Acquire(ctx, 1)
}

// signal wakes the waiter. Safe to call at most meaningfully once; extra
// calls just leave a spare permit that a subsequent wait() would consume
// immediately, but the pool never signals a waiter twice.
func (w *waiter) signal() {
	w.sem.Release(1)
}
