package check

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	passing = CheckFunc(func(context.Context) error { return nil })
	failing = CheckFunc(func(context.Context) error { return errors.New("down") })
)

func TestAll(t *testing.T) {
	t.Parallel()

	if err := All(passing, passing).Check(context.Background()); err != nil {
		t.Fatalf("expected all passing checks to pass, got %v", err)
	}
	if err := All(passing, failing).Check(context.Background()); err == nil {
		t.Fatalf("expected a failing check to fail All")
	}
}

func TestAny(t *testing.T) {
	t.Parallel()

	if err := Any(failing, passing).Check(context.Background()); err != nil {
		t.Fatalf("expected one passing check to pass Any, got %v", err)
	}
	if err := Any(failing, failing).Check(context.Background()); err == nil {
		t.Fatalf("expected all failing checks to fail Any")
	}
	if err := Any().Check(context.Background()); err == nil {
		t.Fatalf("expected Any without checks to fail")
	}
}

func TestWithThreshold(t *testing.T) {
	t.Parallel()

	refused := CheckFunc(func(context.Context) error {
		return ConnectFailure(errors.New("connection refused"))
	})

	cases := []struct {
		name      string
		threshold int
		checks    []Check
		wantErr   bool
	}{
		{name: "quorum reached", threshold: 2, checks: []Check{passing, refused, passing}},
		{name: "quorum missed", threshold: 2, checks: []Check{passing, refused, refused}, wantErr: true},
		{name: "all required", threshold: 2, checks: []Check{passing, passing}},
		{name: "zero threshold", threshold: 0, checks: []Check{passing}, wantErr: true},
		{name: "threshold above checks", threshold: 3, checks: []Check{passing, passing}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := WithThreshold(tc.threshold, tc.checks...).Check(context.Background())
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestWithThreshold_KeepsFailureKind(t *testing.T) {
	t.Parallel()

	refused := CheckFunc(func(context.Context) error {
		return ConnectFailure(errors.New("connection refused"))
	})

	err := WithThreshold(1, refused, refused).Check(context.Background())
	if KindOf(err) != KindConnect {
		t.Fatalf("expected connect failure, got %s: %v", KindOf(err), err)
	}
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	slow := CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()

		return ctx.Err()
	})

	start := time.Now()
	err := WithTimeout(slow, 20*time.Millisecond).Check(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout was not applied, took %s", elapsed)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	if config.Tick >= config.Timeout {
		t.Fatalf("expected tick %s below timeout %s", config.Tick, config.Timeout)
	}
	if config.logger() == nil {
		t.Fatalf("expected a default logger")
	}
	if config.observer() == nil {
		t.Fatalf("expected a default observer")
	}
}
