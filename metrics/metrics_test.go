package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alarmistdev/readiness/check"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Poll(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	collector, err := New(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	config := check.DefaultConfig().
		WithTimeout(time.Second).
		WithTick(10 * time.Millisecond).
		WithObserver(collector)

	calls := 0
	err = check.Poll(context.Background(), "db", check.CheckFunc(func(context.Context) error {
		calls++
		if calls < 3 {
			return check.ConnectFailure(errors.New("refused"))
		}

		return nil
	}), config)
	if err != nil {
		t.Fatalf("expected poll to succeed, got %v", err)
	}

	assertCounter(t, collector.attempts.WithLabelValues("db", "connect"), 2)
	assertCounter(t, collector.attempts.WithLabelValues("db", outcomeSuccess), 1)
	assertCounter(t, collector.waits.WithLabelValues("db", resultReady), 1)

	if got := testutil.CollectAndCount(collector.duration); got != 1 {
		t.Fatalf("expected one duration series, got %d", got)
	}
}

func TestCollector_WaitResults(t *testing.T) {
	t.Parallel()

	collector, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collector.ObserveWait("tcp", time.Second, &check.TimeoutError{Target: "tcp"})
	collector.ObserveWait("tcp", time.Second, context.Canceled)

	assertCounter(t, collector.waits.WithLabelValues("tcp", resultTimeout), 1)
	assertCounter(t, collector.waits.WithLabelValues("tcp", resultCanceled), 1)
}

func TestNew_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatalf("expected registering twice to fail")
	}
}

func assertCounter(t *testing.T, counter prometheus.Counter, want float64) {
	t.Helper()

	if got := testutil.ToFloat64(counter); got != want {
		t.Fatalf("expected counter %v, got %v", want, got)
	}
}
