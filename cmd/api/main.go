package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/triage-service/internal/api/http"
	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/model"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/scheduler"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/worker"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triageCfg, err := config.NewTriageConfigProvider(cfg.Triage.Path)
	if err != nil {
		logger.Fatal("failed to load triage config", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	itemRepo := repository.NewWorkItemRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	scorer := model.NewHistoryAffinityScorer(itemRepo, redis, triageCfg, logger)
	forecaster := model.NewMovingAverageForecaster(itemRepo, agentRepo, triageCfg, logger)

	strategies := service.NewRegistry[service.RankingStrategy]()
	strategies.Register("WSJF", service.WSJFStrategy{})

	triageService := service.NewTriageService(service.TriageServiceDependencies{
		Items:        itemRepo,
		Features:     service.NewFeatureExtractor(logger),
		Grouping:     service.NewGroupingService(itemRepo, logger),
		Estimating:   service.NewEstimatingService(itemRepo, logger),
		Ranking:      service.NewRankingService(itemRepo, strategies, logger),
		Dispatching:  service.NewDispatchingService(itemRepo, agentRepo, scorer, logger),
		Anticipation: service.NewAnticipationService(forecaster, redis, logger),
		Config:       triageCfg,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	alertService := service.NewAlertService(dispatcher, redis, logger, cfg.Alerts)
	worker.StartAlertWorker(alertService)

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler, triageCfg.Snapshot(), scheduler.Jobs{
			RecalculatePriorities: func(ctx context.Context) error {
				_, err := triageService.RecalculateAllPriorities(ctx)
				return err
			},
			RetrainModel: triageService.RetrainModel,
		}, logger)
		if err != nil {
			logger.Fatal("failed to configure scheduler", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.ServiceTokenTTLMin)
	authMiddleware := auth.NewMiddleware(tokens)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	triageHandler := handlers.NewTriageHandler(triageService, triageCfg, scorer)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Triage:         triageHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
