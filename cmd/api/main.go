package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/presence-service/internal/api/http"
	"github.com/spec-kit/presence-service/internal/api/http/handlers"
	"github.com/spec-kit/presence-service/internal/auth"
	"github.com/spec-kit/presence-service/internal/config"
	"github.com/spec-kit/presence-service/internal/events"
	"github.com/spec-kit/presence-service/internal/observability"
	"github.com/spec-kit/presence-service/internal/persistence"
	"github.com/spec-kit/presence-service/internal/repository"
	"github.com/spec-kit/presence-service/internal/service"
	"github.com/spec-kit/presence-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo, channelRepo := buildDirectoryRepos(pool, logger)
	presenceRepo := buildPresenceRepo(cfg.Presence, pool, redis, logger)

	dispatcher := events.NewInMemoryDispatcher()
	accessService := service.NewAccessService(channelRepo)
	authService := service.NewAuthService(*cfg, userRepo)
	channelService := service.NewChannelService(channelRepo, accessService)
	presenceService := service.NewPresenceService(cfg.Presence, service.PresenceDependencies{
		PresenceRepo: presenceRepo,
		ChannelRepo:  channelRepo,
		UserRepo:     userRepo,
		Access:       accessService,
		Dispatcher:   dispatcher,
	})
	activityService := service.NewActivityService(dispatcher, logger, metrics, cfg.Notify)
	worker.StartActivityWorker(activityService)

	sweeper := worker.NewSweeper(presenceService, cfg.Presence, logger)
	go sweeper.Run(ctx)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Channels:       handlers.NewChannelsHandler(channelService),
		Presence:       handlers.NewPresenceHandler(presenceService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

// buildDirectoryRepos picks the channel/user stores. Without a Postgres pool
// every repository must come from the in-memory fallback; handing the nil
// pool to the pgx implementations would only fail later, on first query.
func buildDirectoryRepos(pool *pgxpool.Pool, logger *zap.Logger) (repository.UserRepository, repository.ChannelRepository) {
	if pool == nil {
		logger.Warn("postgres unavailable; using in-memory channel and user stores")
		return repository.NewMemoryUserRepository(), repository.NewMemoryChannelRepository()
	}
	return repository.NewUserRepository(pool), repository.NewChannelRepository(pool)
}

func buildPresenceRepo(cfg config.PresenceConfig, pool *pgxpool.Pool, redis *persistence.Redis, logger *zap.Logger) repository.PresenceRepository {
	switch cfg.Backend {
	case config.PresenceBackendRedis:
		logger.Info("using redis presence backend")
		return repository.NewRedisPresenceRepository(redis.Client)
	case config.PresenceBackendMemory:
		logger.Info("using in-memory presence backend")
		return repository.NewMemoryPresenceRepository()
	default:
		if pool == nil {
			logger.Warn("postgres unavailable; falling back to in-memory presence backend")
			return repository.NewMemoryPresenceRepository()
		}
		return repository.NewPresenceRepository(pool)
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
