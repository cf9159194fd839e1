package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vharuk/ticketd/internal/config"
	"github.com/vharuk/ticketd/internal/postgres"
	redisx "github.com/vharuk/ticketd/internal/redis"
	"github.com/vharuk/ticketd/internal/repository"
	"github.com/vharuk/ticketd/internal/repository/jsonfile"
	postgresrepo "github.com/vharuk/ticketd/internal/repository/postgres"
	redisrepo "github.com/vharuk/ticketd/internal/repository/redis"
	"github.com/vharuk/ticketd/internal/service"
	httpgin "github.com/vharuk/ticketd/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize stores
	catalog, purchaseStore, userDir, err := buildStores(cfg)
	if err != nil {
		return nil, err
	}

	// Redis is optional; without it the services run uncached and unlimited.
	var (
		cache   *redisrepo.Cache
		pubsub  *redisx.StockPubSub
		limiter *redisrepo.SlidingWindowLimiter
		idem    *redisrepo.IdempotencyStore
	)

	if cfg.Redis.Addr != "" {
		rdb, err := redisx.New(context.Background(), redisx.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}

		cache = redisrepo.New(rdb)
		pubsub = redisx.NewStockPubSub(rdb)
		limiter = redisrepo.NewSlidingWindowLimiter(
			rdb,
			"purchase",
			cfg.RateLimit.Limit,
			time.Duration(cfg.RateLimit.WindowSec)*time.Second,
		)
		idem = redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)
	}

	// Initialize services
	services := service.NewServices(catalog, purchaseStore, userDir, cache, pubsub, limiter, logger, service.Config{
		BcryptCost: cfg.Auth.BcryptCost,
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idem, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func buildStores(cfg *config.Config) (repository.EventCatalog, repository.PurchaseStore, repository.UserDirectory, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.Name,
			cfg.Postgres.SSLMode,
		)

		pool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}

		store := postgresrepo.NewStore(pool)
		if err := store.EnsureSchema(context.Background()); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
		}

		return store.Events(), store.Purchases(), store.Users(), nil

	default:
		store, err := jsonfile.NewStore(cfg.Store.DataDir)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize json store: %w", err)
		}

		return store.Events(), store.Purchases(), store.Users(), nil
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
