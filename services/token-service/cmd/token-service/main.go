package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/libs/auth"
	"github.com/md-rashed-zaman/ariaconcierge/libs/config"
	"github.com/md-rashed-zaman/ariaconcierge/libs/httpx"
	otelx "github.com/md-rashed-zaman/ariaconcierge/libs/otel"
	"github.com/md-rashed-zaman/ariaconcierge/libs/runtime"
	"github.com/md-rashed-zaman/ariaconcierge/services/token-service/internal/handlers"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "token-service")
	port, err := config.Port("PORT", "8000")
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

	ttl, err := config.Duration("ROOM_TOKEN_TTL", auth.DefaultTokenTTL)
	if err != nil {
		panic(err)
	}
	var signer handlers.Signer
	roomSigner, err := auth.NewRoomTokenSigner(config.String("LIVEKIT_API_KEY", ""), config.String("LIVEKIT_API_SECRET", ""), ttl)
	if err != nil {
		// Keep serving so the frontend gets an error body instead of a refused connection.
		logger.Error("room token signer disabled", "err", err)
	} else {
		signer = roomSigner
	}
	tokenHandler := handlers.NewTokenHandler(signer, logger, config.String("ROOM_PREFIX", "aria-room-"))

	limit, err := config.Int("RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		panic(err)
	}
	var limiter httpx.Limiter = httpx.NewMemoryLimiter(limit, time.Minute)
	var checks []runtime.ReadyCheck
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: config.String("REDIS_PASSWORD", "")})
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisLimiter(rdb, limit, time.Minute, "ratelimit:token:")
		checks = append(checks, runtime.ReadyCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			Optional: true,
		})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /getToken", httpx.WithRateLimit(limiter, logger, true)(http.HandlerFunc(tokenHandler.GetToken)))

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.AllowAll()),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "token")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
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
	logger.Info("http server stopped")
}
