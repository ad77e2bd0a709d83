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

	"github.com/spec-kit/agentops/internal/agent"
	httptransport "github.com/spec-kit/agentops/internal/api/http"
	"github.com/spec-kit/agentops/internal/api/http/handlers"
	"github.com/spec-kit/agentops/internal/auth"
	"github.com/spec-kit/agentops/internal/compliance"
	"github.com/spec-kit/agentops/internal/config"
	"github.com/spec-kit/agentops/internal/events"
	"github.com/spec-kit/agentops/internal/knowledge"
	"github.com/spec-kit/agentops/internal/llm"
	"github.com/spec-kit/agentops/internal/observability"
	"github.com/spec-kit/agentops/internal/orchestrator"
	"github.com/spec-kit/agentops/internal/persistence"
	"github.com/spec-kit/agentops/internal/ratelimit"
	"github.com/spec-kit/agentops/internal/repository"
	"github.com/spec-kit/agentops/internal/service"
	"github.com/spec-kit/agentops/internal/tools"
	"github.com/spec-kit/agentops/internal/worker"
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

	dbPool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool)
	store := repository.NewWorkflowStore(ticketRepo, auditRepo)

	metrics := observability.NewMetrics()
	model := llm.NewLocalModel()
	throttled := func(name string, lc config.LimiterConfig) *llm.Throttled {
		limiter := ratelimit.New(ratelimit.Config{
			RequestsPerMinute: lc.RequestsPerMinute,
			TokensPerMinute:   lc.TokensPerMinute,
			MaxWait:           lc.MaxWait(),
		})
		return llm.NewThrottled(model, limiter, llm.ThrottledConfig{
			Agent:      name,
			MaxRetries: lc.MaxRetries,
		}, logger, metrics)
	}

	retriever := knowledge.NewMemoryRetriever(nil)
	triage := agent.NewTriage(throttled("triage_agent", cfg.Agents.Triage), retriever, logger)
	resolution := agent.NewResolution(throttled("resolution_agent", cfg.Agents.Resolution), retriever, logger)
	gate := compliance.NewGate(throttled("compliance_agent", cfg.Agents.Compliance), store, logger)

	registry := tools.NewRegistry(logger, metrics)
	tools.RegisterRemediationTools(registry)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	guard := orchestrator.NewRunGuard(redis.Client, time.Duration(cfg.Workflow.LockTTLSec)*time.Second, logger)
	orc := orchestrator.New(orchestrator.Config{
		MaxIterations:       cfg.Workflow.MaxIterations,
		ConfidenceThreshold: cfg.Workflow.ConfidenceThreshold,
		TicketTimeout:       cfg.Workflow.TicketTimeout(),
	}, store, guard, triage, resolution, gate, registry, dispatcher, logger, metrics)

	runPool := orchestrator.NewPool(orc, cfg.Workflow.WorkerPoolSize, cfg.Workflow.QueueSize, logger)
	runPool.Start(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(cfg.Auth, tokens),
		Tickets:        handlers.NewTicketsHandler(ticketRepo, auditRepo, orc, runPool),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	runPool.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
