package check

import (
	"context"
	"iter"
	"time"
)

// TimeoutLoop returns a sequence of the time remaining until timeout elapses,
// yielding roughly once per tick. The deadline is fixed when TimeoutLoop is
// called, so every call gets its own budget.
//
// Each value is computed when it is yielded. Time spent by the consumer
// between two values counts against the tick: the loop only sleeps for what
// is left of it, and never past the deadline. The sequence ends when the
// deadline is reached or ctx is done, and never yields a non-positive value.
func TimeoutLoop(ctx context.Context, timeout, tick time.Duration) iter.Seq[time.Duration] {
	deadline := time.Now().Add(timeout)

	return func(yield func(time.Duration) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			before := time.Now()
			remaining := deadline.Sub(before)
			if remaining <= 0 {
				return
			}

			if !yield(remaining) {
				return
			}

			pause := tick - time.Since(before)
			if left := time.Until(deadline); pause > left {
				pause = left
			}
			if pause <= 0 {
				continue
			}

			if !sleep(ctx, pause) {
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
