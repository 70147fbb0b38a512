package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/bookshelf-labs/library-service/internal/api/http"
	"github.com/bookshelf-labs/library-service/internal/api/http/handlers"
	"github.com/bookshelf-labs/library-service/internal/auth"
	"github.com/bookshelf-labs/library-service/internal/config"
	"github.com/bookshelf-labs/library-service/internal/observability"
	"github.com/bookshelf-labs/library-service/internal/persistence"
	"github.com/bookshelf-labs/library-service/internal/repository"
	"github.com/bookshelf-labs/library-service/internal/service"
	"github.com/bookshelf-labs/library-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	files, err := storage.NewFileStore(cfg.Storage.Dir, int64(cfg.Storage.MaxUploadMB)<<20)
	if err != nil {
		logger.Fatal("failed to prepare file storage", zap.Error(err))
	}

	tokens, err := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
	if err != nil {
		logger.Fatal("failed to init token service", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	bookRepo := repository.NewBookRepository(pool)
	reviewRepo := repository.NewReviewRepository(pool)

	authService := service.NewAuthService(userRepo, tokens, cfg.Auth.BcryptCost, logger)
	bookService := service.NewBookService(bookRepo, files, logger)
	reviewService := service.NewReviewService(reviewRepo, bookRepo, userRepo, logger)

	if err := authService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	gatekeeper := auth.NewGatekeeper(auth.DefaultPolicy(), tokens, userRepo, logger)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: (cfg.Storage.MaxUploadMB + 1) << 20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Docs:          handlers.NewDocsHandler(func() []fiber.Route { return app.GetRoutes(true) }, gatekeeper.Policy()),
		Auth:          handlers.NewAuthHandler(authService),
		Books:         handlers.NewBooksHandler(bookService),
		Reviews:       handlers.NewReviewsHandler(reviewService),
		Gatekeeper:    gatekeeper,
		AuthRateLimit: httptransport.RateLimit(cfg.RateLimit, redis, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
