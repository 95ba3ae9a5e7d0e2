package kafka

import (
	"context"
	"fmt"
	"slices"

	"github.com/IBM/sarama"
	"github.com/alarmistdev/readiness/check"
)

// Check creates a probe that connects to the brokers and lists topics. When
// topics are given, the probe also waits for all of them to exist.
func Check(brokers []string, config check.Config, topics ...string) check.Check {
	return check.CheckFunc(func(ctx context.Context) error {
		client, err := sarama.NewClient(brokers, newKafkaConfig(config))
		if err != nil {
			return check.ConnectFailure(fmt.Errorf("failed to connect to kafka: %w", err))
		}
		defer client.Close()

		if err := ctx.Err(); err != nil {
			return err
		}

		existing, err := client.Topics()
		if err != nil {
			return check.QueryFailure(fmt.Errorf("failed to list kafka topics: %w", err))
		}

		return missingTopics(existing, topics)
	})
}

func newKafkaConfig(config check.Config) *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = sarama.V4_0_0_0
	kafkaConfig.Net.DialTimeout = config.AttemptTimeout
	kafkaConfig.Net.ReadTimeout = config.AttemptTimeout
	kafkaConfig.Net.WriteTimeout = config.AttemptTimeout
	kafkaConfig.Metadata.Retry.Max = 0

	return kafkaConfig
}

func missingTopics(existing, wanted []string) error {
	var missing []string
	for _, topic := range wanted {
		if !slices.Contains(existing, topic) {
			missing = append(missing, topic)
		}
	}

	if len(missing) > 0 {
		return check.Mismatch(fmt.Errorf("missing kafka topics: %v", missing))
	}

	return nil
}
