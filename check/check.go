package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultTick           = 500 * time.Millisecond
	defaultAttemptTimeout = time.Second
)

// Config holds common configuration for readiness checks.
type Config struct {
	// Timeout is the total budget of a wait.
	Timeout time.Duration
	// Tick is the cadence at which attempts are made.
	Tick time.Duration
	// AttemptTimeout bounds a single attempt, independently of Timeout.
	AttemptTimeout time.Duration
	// Label is an optional tag added to target descriptions.
	Label string
	// Logger receives progress updates. Defaults to slog.Default().
	Logger *slog.Logger
	// Observer is notified about attempts and wait outcomes.
	Observer Observer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        defaultTimeout,
		Tick:           defaultTick,
		AttemptTimeout: defaultAttemptTimeout,
	}
}

// WithTimeout sets the total budget of a wait.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout

	return c
}

// WithTick sets the delay between attempts.
func (c Config) WithTick(tick time.Duration) Config {
	c.Tick = tick

	return c
}

// WithAttemptTimeout sets the timeout of a single attempt.
func (c Config) WithAttemptTimeout(timeout time.Duration) Config {
	c.AttemptTimeout = timeout

	return c
}

// WithLabel sets the diagnostic label.
func (c Config) WithLabel(label string) Config {
	c.Label = label

	return c
}

// WithLogger sets the progress logger.
func (c Config) WithLogger(logger *slog.Logger) Config {
	c.Logger = logger

	return c
}

// WithObserver sets the attempt observer.
func (c Config) WithObserver(observer Observer) Config {
	c.Observer = observer

	return c
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}

	return c.Logger
}

func (c Config) observer() Observer {
	if c.Observer == nil {
		return nopObserver{}
	}

	return c.Observer
}

// Check is the interface that all readiness probes must implement.
type Check interface {
	// Check performs a single attempt and returns an error if the target is not ready
	Check(ctx context.Context) error
}

// CheckFunc is a function type that implements the Check interface.
type CheckFunc func(ctx context.Context) error

// Check implements the Check interface for CheckFunc.
func (f CheckFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// WithTimeout wraps a Check with a timeout.
func WithTimeout(check Check, timeout time.Duration) Check {
	return CheckFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return check.Check(ctx)
	})
}

// All creates a check that requires all checks to pass.
func All(checks ...Check) Check {
	return CheckFunc(func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)

		for _, check := range checks {
			g.Go(func() error {
				return check.Check(ctx)
			})
		}

		if err := g.Wait(); err != nil {
			return fmt.Errorf("not all checks passed: %w", err)
		}

		return nil
	})
}

// Any creates a check that requires at least one check to pass.
func Any(checks ...Check) Check {
	return CheckFunc(func(ctx context.Context) error {
		if len(checks) == 0 {
			return errors.New("no checks to run")
		}

		var g errgroup.Group
		results := make(chan error, len(checks))

		for _, check := range checks {
			g.Go(func() error {
				results <- check.Check(ctx)

				return nil
			})
		}

		_ = g.Wait()
		close(results)

		var lastErr error
		for err := range results {
			if err == nil {
				return nil
			}
			lastErr = err
		}

		return fmt.Errorf("all checks failed: %w", lastErr)
	})
}

// WithThreshold creates a check that requires at least threshold of checks
// to pass. Checks run concurrently and a failure does not cancel the others.
func WithThreshold(threshold int, checks ...Check) Check {
	return CheckFunc(func(ctx context.Context) error {
		if threshold <= 0 || threshold > len(checks) {
			return fmt.Errorf("threshold %d out of range for %d checks", threshold, len(checks))
		}

		var g errgroup.Group
		errs := make([]error, len(checks))

		for i, check := range checks {
			g.Go(func() error {
				errs[i] = check.Check(ctx)

				return nil
			})
		}

		_ = g.Wait()

		passed := 0
		var failures []error
		for _, err := range errs {
			if err == nil {
				passed++

				continue
			}
			failures = append(failures, err)
		}

		if passed < threshold {
			return fmt.Errorf("insufficient successful checks: got %d, want %d: %w",
				passed, threshold, errors.Join(failures...))
		}

		return nil
	})
}
