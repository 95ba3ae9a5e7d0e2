package rabbitmq

import (
	"context"
	"fmt"
	"net"

	"github.com/alarmistdev/readiness/check"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Check creates a probe that connects to RabbitMQ and opens a channel.
func Check(url string, config check.Config) check.Check {
	return check.CheckFunc(func(ctx context.Context) error {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Dial: func(network, addr string) (net.Conn, error) {
				dialer := &net.Dialer{Timeout: config.AttemptTimeout}

				return dialer.DialContext(ctx, network, addr)
			},
		})
		if err != nil {
			return check.ConnectFailure(fmt.Errorf("failed to connect to rabbitmq: %w", err))
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			return check.QueryFailure(fmt.Errorf("failed to open rabbitmq channel: %w", err))
		}
		defer ch.Close()

		return nil
	})
}
