package tcp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alarmistdev/readiness/check"
	"github.com/neilotoole/slogt"
)

func TestWait_ListeningPort(t *testing.T) {
	t.Parallel()

	host, port := listen(t)

	start := time.Now()
	err := Wait(context.Background(), host, port, testConfig(t, time.Second, 500*time.Millisecond))
	if err != nil {
		t.Fatalf("expected listening port to be ready, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Fatalf("expected first attempt to succeed quickly, took %s", elapsed)
	}
}

func TestWait_NoListenerTimesOut(t *testing.T) {
	t.Parallel()

	host, port := closedPort(t)

	config := testConfig(t, time.Second, 500*time.Millisecond).WithLabel("materialized")

	start := time.Now()
	err := Wait(context.Background(), host, port, config)
	elapsed := time.Since(start)

	if !errors.Is(err, check.ErrReadinessTimeout) {
		t.Fatalf("expected readiness timeout, got %v", err)
	}
	if elapsed < time.Second || elapsed > 1600*time.Millisecond {
		t.Fatalf("expected timeout after ~1s, took %s", elapsed)
	}

	msg := err.Error()
	for _, want := range []string{host, strconv.Itoa(port), "materialized", "failed to connect"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in error %q", want, msg)
		}
	}

	var timeoutErr *check.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *check.TimeoutError, got %T", err)
	}
	if check.KindOf(timeoutErr.Err) != check.KindConnect {
		t.Fatalf("expected last error to be a connect failure, got %v", timeoutErr.Err)
	}
}

func TestWait_ListenerAppearsLater(t *testing.T) {
	t.Parallel()

	host, port := closedPort(t)

	listeners := make(chan net.Listener, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)

		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			close(listeners)

			return
		}
		listeners <- ln
	}()

	err := Wait(context.Background(), host, port, testConfig(t, 2*time.Second, 50*time.Millisecond))
	if ln, ok := <-listeners; ok {
		ln.Close()
	}
	if err != nil {
		t.Fatalf("expected port to become ready, got %v", err)
	}
}

func TestCheck_SingleAttempt(t *testing.T) {
	t.Parallel()

	host, port := listen(t)
	if err := Check(host, port).Check(context.Background()); err != nil {
		t.Fatalf("expected dial to succeed, got %v", err)
	}

	host, port = closedPort(t)
	if err := Check(host, port).Check(context.Background()); err == nil {
		t.Fatalf("expected dial to closed port to fail")
	}
}

func TestTarget(t *testing.T) {
	t.Parallel()

	if got := Target("localhost", 5432, ""); got != "tcp localhost:5432" {
		t.Fatalf("unexpected target %q", got)
	}
	if got := Target("localhost", 5432, "postgres"); got != "tcp postgres localhost:5432" {
		t.Fatalf("unexpected target %q", got)
	}
}

func testConfig(t *testing.T, timeout, tick time.Duration) check.Config {
	t.Helper()

	return check.DefaultConfig().
		WithTimeout(timeout).
		WithTick(tick).
		WithLogger(slogt.New(t))
}

func listen(t *testing.T) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)

	return addr.IP.String(), addr.Port
}

// closedPort returns an address that was just released, so nothing listens on it.
func closedPort(t *testing.T) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	return addr.IP.String(), addr.Port
}
