package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/ariaconcierge/libs/config"
	"github.com/md-rashed-zaman/ariaconcierge/libs/db"
	"github.com/md-rashed-zaman/ariaconcierge/libs/kafkax"
	"github.com/md-rashed-zaman/ariaconcierge/libs/runtime"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/notify"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

// openStore selects the appointment backend from STORE_BACKEND (postgres, supabase, memory).
func openStore(ctx context.Context, logger *slog.Logger) (storage.Store, runtime.ReadyCheck, func(), error) {
	backend := strings.ToLower(config.String("STORE_BACKEND", "postgres"))
	switch backend {
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, runtime.ReadyCheck{}, nil, err
		}
		maxConns, err := config.Int("DB_MAX_CONNS", 10)
		if err != nil {
			return nil, runtime.ReadyCheck{}, nil, err
		}
		pool, err := db.Open(ctx, dbURL, db.PoolOptions{MaxConns: int32(maxConns)})
		if err != nil {
			return nil, runtime.ReadyCheck{}, nil, fmt.Errorf("db connection failed: %w", err)
		}
		return storage.NewPostgresStore(pool), runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)}, pool.Close, nil
	case "supabase":
		url, err := config.RequiredString("SUPABASE_URL")
		if err != nil {
			return nil, runtime.ReadyCheck{}, nil, err
		}
		key, err := config.RequiredString("SUPABASE_SERVICE_ROLE_KEY")
		if err != nil {
			return nil, runtime.ReadyCheck{}, nil, err
		}
		store, err := storage.NewSupabaseStore(url, key)
		if err != nil {
			return nil, runtime.ReadyCheck{}, nil, err
		}
		return store, runtime.ReadyCheck{Name: "supabase", Check: store.Ping}, func() {}, nil
	case "memory":
		logger.Warn("using in-memory appointment store; data is lost on restart")
		return storage.NewMemoryStore(), runtime.ReadyCheck{Name: "store"}, func() {}, nil
	default:
		return nil, runtime.ReadyCheck{}, nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

// openRedis returns nil when REDIS_ADDR is unset.
func openRedis(logger *slog.Logger) (*redis.Client, runtime.ReadyCheck) {
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, runtime.ReadyCheck{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
	})
	logger.Info("redis configured", "addr", addr)
	return rdb, runtime.ReadyCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
}

// buildSink fans UI events out to every configured transport, plus the log.
func buildSink(logger *slog.Logger, rdb *redis.Client) (notify.Sink, runtime.ReadyCheck, func()) {
	sinks := notify.Fanout{notify.NewLogSink(logger)}
	closeFn := func() {}
	var kafkaCheck runtime.ReadyCheck

	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		topic := config.String("KAFKA_UI_TOPIC", notify.DefaultTopic)
		k, err := notify.NewKafkaSink(brokers, topic)
		if err != nil {
			logger.Error("kafka sink disabled", "err", err)
		} else {
			sinks = append(sinks, k)
			closeFn = func() { _ = k.Close() }
			// UI events are best effort, so an unreachable broker only degrades readiness.
			kafkaCheck = runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers, topic), Optional: true}
		}
	}
	if rdb != nil && config.Bool("REDIS_UI_PUBSUB", true) {
		sinks = append(sinks, notify.NewRedisSink(rdb, config.String("REDIS_UI_CHANNEL_PREFIX", "ui:")))
	}
	return sinks, kafkaCheck, closeFn
}
