package check

import (
	"context"
	"testing"
	"time"
)

func TestTimeoutLoop_ExhaustsWithinBudget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		timeout time.Duration
		tick    time.Duration
	}{
		{name: "several ticks", timeout: 300 * time.Millisecond, tick: 50 * time.Millisecond},
		{name: "tick not dividing timeout", timeout: 250 * time.Millisecond, tick: 100 * time.Millisecond},
		{name: "single tick", timeout: 100 * time.Millisecond, tick: 80 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			start := time.Now()
			ticks := 0
			for remaining := range TimeoutLoop(context.Background(), tc.timeout, tc.tick) {
				if remaining <= 0 {
					t.Fatalf("yielded non-positive remaining time %s", remaining)
				}
				if remaining > tc.timeout {
					t.Fatalf("yielded %s, more than the timeout %s", remaining, tc.timeout)
				}
				ticks++
			}
			elapsed := time.Since(start)

			if ticks == 0 {
				t.Fatalf("expected at least one tick")
			}
			assertElapsedBetween(t, elapsed, tc.timeout, tc.timeout+tc.tick)
		})
	}
}

func TestTimeoutLoop_RemainingDecreases(t *testing.T) {
	t.Parallel()

	var previous time.Duration
	for remaining := range TimeoutLoop(context.Background(), 200*time.Millisecond, 40*time.Millisecond) {
		if previous != 0 && remaining >= previous {
			t.Fatalf("remaining time did not decrease: %s after %s", remaining, previous)
		}
		previous = remaining
	}
}

func TestTimeoutLoop_ConsumerTimeCountsAgainstTick(t *testing.T) {
	t.Parallel()

	const (
		timeout = 300 * time.Millisecond
		tick    = 100 * time.Millisecond
	)

	start := time.Now()
	ticks := 0
	for range TimeoutLoop(context.Background(), timeout, tick) {
		ticks++
		time.Sleep(tick)
	}

	// Sleeping a whole tick in the consumer leaves nothing for the loop to
	// sleep, so ticks keep their cadence instead of doubling it.
	if ticks < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", ticks)
	}
	assertElapsedBetween(t, time.Since(start), timeout, timeout+tick)
}

func TestTimeoutLoop_IndependentDeadlines(t *testing.T) {
	t.Parallel()

	loop := TimeoutLoop(context.Background(), 100*time.Millisecond, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	for remaining := range loop {
		t.Fatalf("expected loop anchored at call time to be exhausted, got %s", remaining)
	}

	fresh := 0
	for range TimeoutLoop(context.Background(), 100*time.Millisecond, 20*time.Millisecond) {
		fresh++
	}
	if fresh == 0 {
		t.Fatalf("expected a new loop to have its own budget")
	}
}

func TestTimeoutLoop_NonPositiveTimeout(t *testing.T) {
	t.Parallel()

	for range TimeoutLoop(context.Background(), 0, 10*time.Millisecond) {
		t.Fatalf("expected no ticks for zero timeout")
	}
}

func TestTimeoutLoop_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	start := time.Now()
	ticks := 0
	for range TimeoutLoop(ctx, 5*time.Second, 50*time.Millisecond) {
		ticks++
		if ticks == 2 {
			cancel()
		}
	}

	if ticks != 2 {
		t.Fatalf("expected 2 ticks before cancellation, got %d", ticks)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("loop kept running after cancellation: %s", elapsed)
	}
}

func TestTimeoutLoop_Break(t *testing.T) {
	t.Parallel()

	start := time.Now()
	for range TimeoutLoop(context.Background(), 5*time.Second, time.Second) {
		break
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("breaking out of the loop should not sleep, took %s", elapsed)
	}
}

func assertElapsedBetween(t *testing.T, elapsed, lower, upper time.Duration) {
	t.Helper()

	const slack = 50 * time.Millisecond

	if elapsed < lower {
		t.Fatalf("finished too early: elapsed %s, want at least %s", elapsed, lower)
	}
	if elapsed > upper+slack {
		t.Fatalf("finished too late: elapsed %s, want at most %s", elapsed, upper)
	}
}
