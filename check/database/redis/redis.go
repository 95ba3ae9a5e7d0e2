package redis

import (
	"context"
	"fmt"

	"github.com/alarmistdev/readiness/check"
	"github.com/redis/go-redis/v9"
)

// Check creates a probe that sends PING to the Redis server at addr.
func Check(addr string, config check.Config) check.Check {
	return CheckWithAuth(addr, "", "", config)
}

// CheckWithAuth creates a PING probe that authenticates first.
func CheckWithAuth(addr, username, password string, config check.Config) check.Check {
	return check.CheckFunc(func(ctx context.Context) error {
		client := redis.NewClient(&redis.Options{
			Addr:         addr,
			Username:     username,
			Password:     password,
			DialTimeout:  config.AttemptTimeout,
			ReadTimeout:  config.AttemptTimeout,
			WriteTimeout: config.AttemptTimeout,
			MaxRetries:   -1,
			PoolSize:     1,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return check.ConnectFailure(fmt.Errorf("failed to ping redis at %s: %w", addr, err))
		}

		return nil
	})
}
