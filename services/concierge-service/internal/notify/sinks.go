package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/libs/kafkax"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "concierge.ui.events.v1"

// KafkaFlushInterval bounds how long a single event waits in the writer's batch. The
// default of one second would stall the dispatcher on every event.
const KafkaFlushInterval = 5 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes events keyed by room so one room's events stay ordered.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers, topic string) (*KafkaSink, error) {
	list := kafkax.SplitBrokers(brokers)
	if len(list) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      list,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: KafkaFlushInterval,
	})
	return &KafkaSink{writer: writer}, nil
}

func (k *KafkaSink) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.RoomName),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "session_id", Value: []byte(ev.SessionID)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaSink) Close() error { return k.writer.Close() }

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes on channel <prefix><room>, which a frontend bridge subscribes to.
type RedisSink struct {
	rdb    redisPublisher
	prefix string
}

func NewRedisSink(rdb redisPublisher, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "ui:"
	}
	return &RedisSink{rdb: rdb, prefix: prefix}
}

func (r *RedisSink) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.rdb.Publish(ctx, r.prefix+ev.RoomName, body).Err()
}

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Publish(_ context.Context, ev Event) error {
	l.logger.Info("ui event", "type", ev.Type, "tool", ev.Tool, "session_id", ev.SessionID, "room", ev.RoomName)
	return nil
}

// Fanout publishes to every sink concurrently and joins their errors, so a slow transport
// does not hold back the others.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	errs := make([]error, len(f))
	var wg sync.WaitGroup
	for i, s := range f {
		wg.Add(1)
		go func(i int, s Sink) {
			defer wg.Done()
			errs[i] = s.Publish(ctx, ev)
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}
