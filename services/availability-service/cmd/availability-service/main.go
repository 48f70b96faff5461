package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/slotengine/libs/config"
	"github.com/md-rashed-zaman/slotengine/libs/db"
	"github.com/md-rashed-zaman/slotengine/libs/grpcx"
	"github.com/md-rashed-zaman/slotengine/libs/httpx"
	"github.com/md-rashed-zaman/slotengine/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotengine/libs/otel"
	"github.com/md-rashed-zaman/slotengine/libs/redisx"
	"github.com/md-rashed-zaman/slotengine/libs/runtime"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/consumer"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/events"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/inbox"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/slotcache"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/slots"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const grpcHealthService = "slotengine.availability.v1.Availability"

func main() {
	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9095")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10, 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb, err := redisx.Open(ctx, redisx.Config{
		Addr:     config.String("REDIS_ADDR", ""),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0, 0),
	})
	if err != nil {
		// Redis only backs the shared cache tier and rate limiting; run without it.
		logger.Warn("redis unavailable; continuing without shared cache", "err", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	cacheTTL := config.Duration("SLOT_CACHE_TTL", 5*time.Minute)
	cache := slotcache.Tiered{L1: slotcache.NewLRU(config.Int("SLOT_CACHE_SIZE", 1024, 1), cacheTTL)}
	if rdb != nil {
		cache.L2 = slotcache.NewRedis(rdb, cacheTTL, logger)
	}

	repo := storage.NewRepository(pool)
	slotService := slots.NewService(repo, cache, logger, slots.Config{
		MaxWindow: time.Duration(config.Int("MAX_WINDOW_DAYS", 62, 1)) * 24 * time.Hour,
	})

	brokers := config.String("KAFKA_BROKERS", "")
	if len(kafkax.SplitBrokers(brokers)) > 0 {
		inboxRepo := inbox.NewRepository(pool)
		eventHandler := events.NewHandler(repo, slotService, logger)
		for _, topic := range config.List("KAFKA_BOOKING_TOPICS", events.TopicBooked+","+events.TopicCancelled) {
			eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
				Brokers: brokers,
				GroupID: config.String("KAFKA_GROUP_ID", service),
				Topic:   topic,
			}, eventHandler.Handle)
			go eventConsumer.Run(ctx)
			logger.Info("kafka consumer started", "topic", topic)
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set; booking events will not be consumed")
	}

	grpcServer := grpcx.NewServer(logger)
	grpcServer.SetServing(grpcHealthService, true)
	grpcLis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	grpcDone := make(chan struct{})
	go func() {
		defer close(grpcDone)
		if err := grpcServer.Serve(ctx, grpcLis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handlers.NewAvailabilityHandler(slotService, repo, logger).Register(mux)

	var rateLimit httpx.Middleware
	if perMinute := config.Int("RATE_LIMIT_PER_MINUTE", 0, 0); perMinute > 0 {
		if rdb != nil {
			rateLimit = httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:availability")).
				Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		} else {
			rateLimit = httpx.NewRateLimiter(perMinute, time.Minute).Middleware()
		}
	}

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		rateLimit,
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20, 1))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
	)
	handler = otelhttp.NewHandler(handler, "availability")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
	<-grpcDone
	logger.Info("http server stopped")
}
