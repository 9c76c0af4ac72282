// Package broker defines the interface for message brokers and provides implementations.
package broker

import (
	"context"

	"results-agent/src/logger"
)

// Broker abstracts message publishing and consumption.
type Broker interface {
	// Publish sends a message to a topic. Redpanda uses key for partition
	// assignment; the in-memory broker only passes it through.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel for consuming messages from a topic.
	// groupID is used for consumer group coordination in Kafka.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts down the broker connection gracefully.
	Close() error
}

// Message represents a consumed message from a broker.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
}

// New returns a RedpandaBroker when brokers is non-empty and an
// InMemoryBroker otherwise.
func New(brokers []string, log logger.Logger) (Broker, error) {
	if len(brokers) == 0 {
		return NewInMemoryBroker(), nil
	}
	return NewRedpandaBroker(brokers, WithLogger(log))
}
