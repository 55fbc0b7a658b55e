package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cajuhub/roombook/libs/db"
	"github.com/cajuhub/roombook/libs/grpcx"
	"github.com/cajuhub/roombook/libs/httpx"
	"github.com/cajuhub/roombook/libs/kafkax"
	otelx "github.com/cajuhub/roombook/libs/otel"
	"github.com/cajuhub/roombook/libs/runtime"
	"github.com/cajuhub/roombook/services/booking-service/internal/booking"
	"github.com/cajuhub/roombook/services/booking-service/internal/config"
	"github.com/cajuhub/roombook/services/booking-service/internal/consumer"
	"github.com/cajuhub/roombook/services/booking-service/internal/handlers"
	"github.com/cajuhub/roombook/services/booking-service/internal/inbox"
	"github.com/cajuhub/roombook/services/booking-service/internal/outbox"
	"github.com/cajuhub/roombook/services/booking-service/internal/spaces"
	"github.com/cajuhub/roombook/services/booking-service/internal/storage"
)

// HealthService is the gRPC health service name the gateway probes.
const HealthService = "roombook.booking"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "booking-service config:", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("booking-service stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	var (
		store  storage.Store
		dir    spaces.Directory
		checks []runtime.ReadyCheck
	)
	seed, err := spaces.ParseSeed(cfg.SeedSpaces)
	if err != nil {
		return fmt.Errorf("SEED_SPACES: %w", err)
	}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory booking store; data is lost on restart")
		static := spaces.NewStaticDirectory(seed...)
		dir = static
		store = storage.NewMemoryStore(static)

	default:
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, pool, storage.Migrations, storage.MigrationsDir); err != nil {
				return err
			}
			logger.Info("migrations applied")
		}

		pgDir := spaces.NewPostgresDirectory(pool)
		if len(seed) > 0 {
			if err := pgDir.Seed(ctx, seed); err != nil {
				return fmt.Errorf("seed spaces: %w", err)
			}
		}
		dir = pgDir

		var cached *spaces.CachedDirectory
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer rdb.Close()
			cached = spaces.NewCachedDirectory(pgDir, rdb, cfg.SpaceCacheTTL, logger)
			dir = cached
			if !cfg.SpaceEventsConsumed() {
				logger.Warn("space events not consumed; cached spaces refresh only on ttl", "ttl", cfg.SpaceCacheTTL)
			}
			checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}})
		}

		outboxRepo := outbox.NewRepository(pool)
		// Creates check the active flag against the table, never the cache.
		store = storage.NewPostgresStore(pool, pgDir, outboxRepo)

		pruner := outbox.NewPruner(outboxRepo, cfg.OutboxRetention, logger)
		g.Go(func() error { return pruner.Run(gctx, cfg.OutboxPruneSchedule) })

		if brokers := cfg.Brokers(); len(brokers) > 0 {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})

			writer := kafkax.NewWriter(brokers)
			defer writer.Close()
			publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
				PollEvery: cfg.OutboxPollEvery,
				BatchSize: cfg.OutboxBatchSize,
			})
			g.Go(func() error { return publisher.Run(gctx) })

			if cfg.SpaceEventsConsumed() {
				reader := kafkax.NewReader(brokers, cfg.KafkaGroupID, cfg.SpaceEventsTopic)
				c := consumer.New(reader, inbox.NewRepository(pool), consumer.InvalidateSpaces(cached, logger), logger)
				g.Go(func() error { return c.Run(gctx) })
			}
		} else {
			logger.Warn("kafka not configured; outbox events stay unpublished")
		}
	}

	svc := booking.NewService(store, dir, logger, booking.Config{
		StoreTimeout:  cfg.StoreTimeout,
		CalendarStep:  cfg.CalendarStep,
		SlotStep:      cfg.SlotStep,
		AgendaLimit:   cfg.AgendaLimit,
		AgendaHorizon: cfg.AgendaHorizon,
		Location:      cfg.Location(),
	})

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewBookingHandler(svc, logger).Register(mux)
	var handler http.Handler = httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	handler = otelhttp.NewHandler(handler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		reportHealth(gctx, health, checks, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		health.Shutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		grpcSrv.GracefulStop()
		logger.Info("servers stopped")
		return nil
	})

	return g.Wait()
}

type healthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// reportHealth mirrors the readiness checks onto the gRPC health service.
func reportHealth(ctx context.Context, hs healthSetter, checks []runtime.ReadyCheck, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		status := healthpb.HealthCheckResponse_SERVING
		if failures := runtime.RunChecks(ctx, checks); len(failures) > 0 {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if last != status {
				logger.Warn("dependencies unhealthy", "failures", failures)
			}
		}
		if status != last {
			hs.SetServingStatus("", status)
			hs.SetServingStatus(HealthService, status)
			last = status
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
