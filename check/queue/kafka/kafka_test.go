package kafka

import (
	"testing"
	"time"

	"github.com/alarmistdev/readiness/check"
)

func TestMissingTopics(t *testing.T) {
	t.Parallel()

	existing := []string{"orders", "payments"}

	if err := missingTopics(existing, nil); err != nil {
		t.Fatalf("expected no required topics to pass, got %v", err)
	}
	if err := missingTopics(existing, []string{"orders"}); err != nil {
		t.Fatalf("expected existing topic to pass, got %v", err)
	}

	err := missingTopics(existing, []string{"orders", "refunds"})
	if check.KindOf(err) != check.KindMismatch {
		t.Fatalf("expected mismatch for missing topic, got %v", err)
	}
}

func TestNewKafkaConfig(t *testing.T) {
	t.Parallel()

	kafkaConfig := newKafkaConfig(check.DefaultConfig().WithAttemptTimeout(300 * time.Millisecond))

	if kafkaConfig.Net.DialTimeout != 300*time.Millisecond {
		t.Fatalf("expected dial timeout to follow the attempt timeout, got %s", kafkaConfig.Net.DialTimeout)
	}
	if err := kafkaConfig.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
