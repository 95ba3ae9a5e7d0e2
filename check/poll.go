package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Poll runs check once per tick until it succeeds or config.Timeout elapses.
// Failed attempts are logged and retried; only the final outcome is returned.
// On exhaustion the error is a *TimeoutError carrying the last failure.
func Poll(ctx context.Context, target string, check Check, config Config) error {
	_, err := PollValue(ctx, target, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, check.Check(ctx)
	}, config)

	return err
}

// PollValue is Poll for probes that capture a value on success.
func PollValue[T any](
	ctx context.Context,
	target string,
	probe func(ctx context.Context) (T, error),
	config Config,
) (T, error) {
	logger := config.logger().With("target", target)
	observer := config.observer()

	logger.Info("waiting for target", "timeout", config.Timeout)

	start := time.Now()
	attempts := 0

	var (
		zero    T
		lastErr error
	)

	for remaining := range TimeoutLoop(ctx, config.Timeout, config.Tick) {
		attempts++

		budget := remaining
		if config.AttemptTimeout > 0 {
			budget = min(config.AttemptTimeout, remaining)
		}

		value, err := attempt(ctx, probe, budget)
		observer.ObserveAttempt(target, err)

		if err == nil {
			elapsed := time.Since(start)
			logger.Info("target is ready", "elapsed", elapsed, "attempts", attempts)
			observer.ObserveWait(target, elapsed, nil)

			return value, nil
		}

		lastErr = err
		level := slog.LevelDebug
		if KindOf(err) == KindMismatch {
			level = slog.LevelInfo
		}
		logger.Log(ctx, level, "still waiting",
			"remaining", int(remaining.Seconds()),
			"elapsed", time.Since(start).Seconds(),
			"kind", KindOf(err),
			"error", err,
		)
	}

	elapsed := time.Since(start)

	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("waiting for %s: %w", target, errors.Join(ctxErr, lastErr))
	} else {
		err = &TimeoutError{
			Target:   target,
			Elapsed:  elapsed,
			Attempts: attempts,
			Err:      lastErr,
		}
	}

	logger.Warn("target never got ready", "elapsed", elapsed, "attempts", attempts, "error", lastErr)
	observer.ObserveWait(target, elapsed, err)

	return zero, err
}

func attempt[T any](ctx context.Context, probe func(ctx context.Context) (T, error), timeout time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return probe(ctx)
}
