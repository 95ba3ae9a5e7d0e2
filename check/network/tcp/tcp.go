package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/alarmistdev/readiness/check"
)

const defaultDialTimeout = 5 * time.Second

// Check creates a probe that opens and immediately closes a TCP connection.
// The dial is bounded by the context deadline or five seconds, whichever is
// shorter.
func Check(host string, port int) check.Check {
	return check.CheckFunc(func(ctx context.Context) error {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		dialer := net.Dialer{Timeout: defaultDialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return check.ConnectFailure(fmt.Errorf("failed to connect to %s: %w", addr, err))
		}
		conn.Close()

		return nil
	})
}

// Wait blocks until a TCP connection to host:port succeeds or config.Timeout
// elapses. Single attempts are bounded by half a tick so that one slow dial
// cannot eat the remaining retries.
func Wait(ctx context.Context, host string, port int, config check.Config) error {
	if config.Tick > 0 {
		config.AttemptTimeout = min(config.AttemptTimeout, config.Tick/2)
		if config.AttemptTimeout <= 0 {
			config.AttemptTimeout = config.Tick / 2
		}
	}

	return check.Poll(ctx, Target(host, port, config.Label), Check(host, port), config)
}

// Target describes a TCP endpoint for logs and errors.
func Target(host string, port int, label string) string {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if label == "" {
		return "tcp " + addr
	}

	return fmt.Sprintf("tcp %s %s", label, addr)
}
