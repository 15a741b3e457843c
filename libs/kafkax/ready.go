package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReadyCheck dials the first reachable broker. With a topic it also requires the topic
// to have partitions, since writers here do not create topics.
func ReadyCheck(brokers, topic string) func(context.Context) error {
	return func(ctx context.Context) error {
		list := SplitBrokers(brokers)
		if len(list) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		var lastErr error
		for _, addr := range list {
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				continue
			}
			defer conn.Close()
			if topic == "" {
				return nil
			}
			parts, err := conn.ReadPartitions(topic)
			if err != nil {
				return fmt.Errorf("topic %s: %w", topic, err)
			}
			if len(parts) == 0 {
				return fmt.Errorf("topic %s has no partitions", topic)
			}
			return nil
		}
		return lastErr
	}
}
