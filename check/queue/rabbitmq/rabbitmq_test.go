package rabbitmq

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alarmistdev/readiness/check"
)

func TestCheck_NoServer(t *testing.T) {
	t.Parallel()

	port := closedPort(t)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	config := check.DefaultConfig().WithAttemptTimeout(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := Check("amqp://guest:guest@"+addr+"/", config).Check(ctx)
	if err == nil {
		t.Fatalf("expected check to fail without a server")
	}
	if kind := check.KindOf(err); kind != check.KindConnect {
		t.Fatalf("expected connect failure, got %s: %v", kind, err)
	}
}

func closedPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	return port
}
