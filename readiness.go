// Package readiness waits for the dependencies of an application or a test
// run to become usable: TCP ports that accept connections, databases that
// answer queries with the expected rows, brokers that accept clients.
package readiness

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alarmistdev/readiness/check"
	"golang.org/x/sync/errgroup"
)

// Target represents a single dependency to wait for.
type Target struct {
	Name       string           `json:"name"`
	Importance TargetImportance `json:"importance"`
	Group      string           `json:"group,omitempty"`
	timeout    time.Duration
	check      check.Check
}

// TargetImportance defines whether a target is required.
type TargetImportance string

const (
	// TargetImportanceLow indicates that the target is not required; its
	// timeout is reported but does not fail the wait.
	TargetImportanceLow = TargetImportance("low")
	// TargetImportanceHigh indicates that the target is required.
	TargetImportanceHigh = TargetImportance("high")
)

// Waiter waits for a collection of targets.
type Waiter struct {
	config  check.Config
	targets []Target
}

// NewWaiter creates a Waiter. config applies to every target unless
// overridden per target.
func NewWaiter(config check.Config) *Waiter {
	return &Waiter{config: config}
}

// TargetOption is a function that configures a Target.
type TargetOption func(*Target)

// WithImportance sets the importance level of a target.
func WithImportance(importance TargetImportance) TargetOption {
	return func(t *Target) {
		t.Importance = importance
	}
}

// WithGroup sets the group name of a target.
func WithGroup(group string) TargetOption {
	return func(t *Target) {
		t.Group = group
	}
}

// WithTimeout overrides the wait budget of a target.
func WithTimeout(timeout time.Duration) TargetOption {
	return func(t *Target) {
		t.timeout = timeout
	}
}

// WithTarget adds a new target to the waiter.
func (w *Waiter) WithTarget(name string, check check.Check, opts ...TargetOption) *Waiter {
	target := Target{
		Name:       name,
		Importance: TargetImportanceHigh,
		check:      check,
	}

	for _, opt := range opts {
		opt(&target)
	}

	w.targets = append(w.targets, target)

	return w
}

// TargetStatus represents the outcome for a target.
type TargetStatus string

const (
	// TargetStatusReady indicates that the target became ready.
	TargetStatusReady = TargetStatus("ready")
	// TargetStatusNotReady indicates that the target did not become ready.
	TargetStatusNotReady = TargetStatus("not_ready")
)

// Result contains the outcome for a target.
type Result struct {
	Target       Target        `json:"target"`
	Status       TargetStatus  `json:"status"`
	ErrorMessage string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	err          error
}

// Err returns the error of the target, nil when it is ready.
func (r Result) Err() error {
	return r.err
}

// Wait polls every target concurrently until each is ready or its budget is
// spent. The returned error joins the failures of required targets.
func (w *Waiter) Wait(ctx context.Context) ([]Result, error) {
	return w.run(ctx, func(ctx context.Context, target Target) error {
		config := w.config
		if target.timeout > 0 {
			config.Timeout = target.timeout
		}

		return check.Poll(ctx, target.Name, target.check, config)
	})
}

// Check performs a single attempt for every target concurrently.
func (w *Waiter) Check(ctx context.Context) ([]Result, error) {
	return w.run(ctx, func(ctx context.Context, target Target) error {
		if w.config.AttemptTimeout > 0 {
			return check.WithTimeout(target.check, w.config.AttemptTimeout).Check(ctx)
		}

		return target.check.Check(ctx)
	})
}

func (w *Waiter) run(ctx context.Context, fn func(context.Context, Target) error) ([]Result, error) {
	results := make([]Result, len(w.targets))

	// Targets do not cancel each other: a failed target must not cut short
	// the wait of the others.
	var g errgroup.Group

	for i := range w.targets {
		index := i
		target := w.targets[i]
		g.Go(func() error {
			start := time.Now()
			err := fn(ctx, target)
			results[index] = newResult(target, err, time.Since(start))

			return nil
		})
	}

	_ = g.Wait()

	var errs []error
	for _, result := range results {
		if result.err != nil && result.Target.Importance == TargetImportanceHigh {
			errs = append(errs, result.err)
		}
	}

	return results, errors.Join(errs...)
}

func newResult(target Target, err error, duration time.Duration) Result {
	if err != nil {
		return Result{
			Target:       target,
			Status:       TargetStatusNotReady,
			err:          err,
			ErrorMessage: err.Error(),
			Duration:     duration,
		}
	}

	return Result{
		Target:   target,
		Status:   TargetStatusReady,
		Duration: duration,
	}
}

// Handler reports a single readiness check of every target as JSON. It
// responds 503 when a required target is not ready; the no_deps query
// parameter skips the targets.
func (w *Waiter) Handler() http.HandlerFunc {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if _, noDeps := r.URL.Query()["no_deps"]; noDeps {
			rw.WriteHeader(http.StatusOK)

			return
		}

		results, err := w.Check(r.Context())

		status := http.StatusOK
		if err != nil {
			status = http.StatusServiceUnavailable
		}

		respondJSON(rw, status, results)
	})
}

// respondJSON responds JSON body with a given code. It sets
// Content-Type header.
func respondJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(&data); err != nil {
		slog.Error("encoding data to respond with json", "error", err)
	}
}
