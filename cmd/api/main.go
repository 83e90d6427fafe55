package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"example.com/fitlog/internal/api"
	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/logging"
	"example.com/fitlog/internal/middleware"
	"example.com/fitlog/internal/outbox"
	"example.com/fitlog/internal/persistence/mongo"
	"example.com/fitlog/internal/persistence/postgres"
	"example.com/fitlog/internal/persistence/sqlite"
	httptransport "example.com/fitlog/internal/transport/http"
)

const dbStartupTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	logCloser := logging.Setup(logging.SetupParams{
		LogFileName:   cfg.LogsPath,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Errorf("api stopped: %s", err)
		os.Exit(1)
	}
	log.Info("api stopped")
}

func run(ctx context.Context, cfg config.Config) (err error) {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		// background workers stop before the store is closed
		cancel()
		err = multierr.Append(err, closeStore())
	}()

	handler := api.NewHandler(domain.NewService(repo),
		api.WithLocation(loc),
		api.WithDashboardCacheSize(cfg.DashboardCacheBytes),
	)

	router := mux.NewRouter()
	router.Use(middleware.PanicRecovery(), middleware.LogRequest(), middleware.Cors(cfg.AllowedOrigins))
	if cfg.AuthEnabled {
		router.Use(auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}).Wrap)
	} else {
		log.Warn("authentication disabled")
	}
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	var createMiddleware []mux.MiddlewareFunc
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer func() {
			err = multierr.Append(err, rdb.Close())
		}()
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			log.Warnf("redis unreachable, create requests pass unlimited until it recovers: %s", pingErr)
		}
		limiter := redis_rate.NewLimiter(rdb)
		createMiddleware = append(createMiddleware, middleware.RateLimit(limiter, "create-entry", cfg.PostsPerMinute))
	}
	handler.RegisterRoutes(router, createMiddleware...)

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, router)

	log.Infof("fitlog api starting (store=%s, tz=%s)", cfg.StoreDriver, loc)
	return httptransport.Run(ctx, server, serverCfg.ShutdownTimeout)
}

// openStore selects the entry store. The Postgres store also runs the outbox
// relay until ctx is cancelled.
func openStore(ctx context.Context, cfg config.Config) (domain.EntryRepository, func() error, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresURL, dbStartupTimeout)
		if err != nil {
			return nil, nil, err
		}
		relay, publisher := startRelay(ctx, cfg, pool)
		return postgres.NewRepository(pool), func() error {
			relay.Wait()
			closeErr := publisher.Close()
			pool.Close()
			return closeErr
		}, nil

	case config.StoreMongo:
		repo, client, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(shutdownCtx)
		}, nil

	case config.StoreSQLite:
		repo, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return repo, repo.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver: %q", cfg.StoreDriver)
}

func startRelay(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (*outbox.Relay, *outbox.Publisher) {
	publisher := outbox.NewPublisher(cfg.KafkaBrokers)
	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	relay := outbox.NewRelay(pool, publisher, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go relay.Run(ctx)
	return relay, publisher
}
