package kafka

import (
	"strings"
	"time"
)

// DefaultTopic carries every job lifecycle event
const DefaultTopic = "printflow.job-lifecycle"

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// Consumer settings
	MinBytes      int
	MaxBytes      int
	MaxWait       time.Duration
	CommitTimeout time.Duration
	// StartFromLatest skips history when a group has no committed offset
	StartFromLatest bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "job-lifecycle",
		ClientID:      "job-lifecycle",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,

		MinBytes:      1,
		MaxBytes:      10e6,
		MaxWait:       500 * time.Millisecond,
		CommitTimeout: 5 * time.Second,
	}
}

// ParseBrokers splits a comma separated broker list, dropping blanks
func ParseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// LifecycleTopicConfig describes the lifecycle topic. Events are keyed by
// job so per-job ordering survives partitioning.
func LifecycleTopicConfig(name string) TopicConfig {
	if name == "" {
		name = DefaultTopic
	}
	return TopicConfig{
		Name:              name,
		Partitions:        6,
		ReplicationFactor: 3,
		RetentionMs:       int64(7 * 24 * time.Hour / time.Millisecond),
	}
}
