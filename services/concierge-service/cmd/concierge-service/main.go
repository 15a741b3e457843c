package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/libs/config"
	"github.com/md-rashed-zaman/ariaconcierge/libs/httpx"
	otelx "github.com/md-rashed-zaman/ariaconcierge/libs/otel"
	"github.com/md-rashed-zaman/ariaconcierge/libs/runtime"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/clock"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/coordinator"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/guard"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/handlers"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/notify"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/policy"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "concierge-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	rules, err := rulesFromEnv()
	if err != nil {
		panic(err)
	}
	grace, err := config.Duration("SESSION_TEARDOWN_GRACE", session.DefaultTeardownGrace)
	if err != nil {
		panic(err)
	}
	repeats, err := config.Int("SUMMARY_BROADCAST_COUNT", 3)
	if err != nil {
		panic(err)
	}
	repeatEvery, err := config.Duration("SUMMARY_BROADCAST_INTERVAL", time.Second)
	if err != nil {
		panic(err)
	}

	store, storeCheck, closeStore, err := openStore(ctx, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer closeStore()

	rdb, redisCheck := openRedis(logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	var locker guard.Locker
	if rdb != nil {
		ttl, err := config.Duration("SLOT_LOCK_TTL", 5*time.Second)
		if err != nil {
			panic(err)
		}
		wait, err := config.Duration("SLOT_LOCK_WAIT", 2*time.Second)
		if err != nil {
			panic(err)
		}
		locker = guard.NewRedisLocker(rdb, ttl, wait)
		logger.Info("slot lock backed by redis")
	} else {
		locker = guard.NewLocalLocker()
		logger.Warn("slot lock is process-local (REDIS_ADDR not set)")
	}

	sink, kafkaCheck, closeSink := buildSink(logger, rdb)
	defer closeSink()
	dispatcher := notify.NewDispatcher(sink, logger, notify.DispatcherConfig{
		QueueSize:      256,
		PublishTimeout: 3 * time.Second,
	})
	go dispatcher.Run(ctx)

	clk := clock.System()
	registry := session.NewRegistry(logger, clk, grace)
	coord := coordinator.New(coordinator.Deps{
		Store:           store,
		Guard:           guard.New(store, locker),
		Sessions:        registry,
		Notifier:        dispatcher,
		Rules:           policy.NewStaticProvider(rules),
		Clock:           clk,
		Logger:          logger,
		SummaryRepeats:  repeats,
		SummaryInterval: repeatEvery,
	})
	toolHandler := handlers.NewToolHandler(coord, logger)

	checks := []runtime.ReadyCheck{storeCheck}
	if redisCheck.Check != nil {
		checks = append(checks, redisCheck)
	}
	if kafkaCheck.Check != nil {
		checks = append(checks, kafkaCheck)
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	toolHandler.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "concierge")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "store", config.String("STORE_BACKEND", "postgres"))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped", "open_sessions", registry.Len())
}

func rulesFromEnv() (policy.Rules, error) {
	rules := policy.Defaults()
	lead, err := config.Int("MIN_LEAD_MINUTES", int(rules.LeadTime/time.Minute))
	if err != nil {
		return rules, err
	}
	rules.LeadTime = time.Duration(lead) * time.Minute
	if rules.DailyCap, err = config.Int("DAILY_APPOINTMENT_CAP", rules.DailyCap); err != nil {
		return rules, err
	}
	rules.Catalog = config.List("SLOT_CATALOG", rules.Catalog)
	return rules, nil
}
