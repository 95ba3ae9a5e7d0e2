package nats

import (
	"context"
	"fmt"

	"github.com/alarmistdev/readiness/check"
	"github.com/nats-io/nats.go"
)

// Check creates a probe that connects to NATS and completes a round trip
// with the server.
func Check(url string, config check.Config) check.Check {
	return check.CheckFunc(func(ctx context.Context) error {
		nc, err := nats.Connect(url,
			nats.Timeout(config.AttemptTimeout),
			nats.NoReconnect(),
		)
		if err != nil {
			return check.ConnectFailure(fmt.Errorf("failed to connect to nats: %w", err))
		}
		defer nc.Close()

		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.AttemptTimeout)
			defer cancel()
		}

		if err := nc.FlushWithContext(ctx); err != nil {
			return check.QueryFailure(fmt.Errorf("failed to flush nats connection: %w", err))
		}

		return nil
	})
}
