package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/retrieval-core/internal/config"
	"github.com/kirillkom/retrieval-core/internal/core/ports"
	"github.com/kirillkom/retrieval-core/internal/core/usecase"
	natssink "github.com/kirillkom/retrieval-core/internal/infrastructure/alerts/nats"
	auditpg "github.com/kirillkom/retrieval-core/internal/infrastructure/audit/postgres"
	"github.com/kirillkom/retrieval-core/internal/infrastructure/backend/analytics"
	"github.com/kirillkom/retrieval-core/internal/infrastructure/backend/graph"
	"github.com/kirillkom/retrieval-core/internal/infrastructure/backend/keyword"
	"github.com/kirillkom/retrieval-core/internal/infrastructure/resilience"
	"github.com/kirillkom/retrieval-core/internal/observability/metrics"
	"github.com/kirillkom/retrieval-core/internal/observability/tracing"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	SearchUC   ports.RetrievalService
	EvaluateUC ports.EvaluationService
	Tracer     *tracing.Tracer
	Metrics    *metrics.RetrievalMetrics
	Sink       *natssink.Sink

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	db, err := analytics.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	analyticsBackend := analytics.NewBackend(db, executor)
	if err := analyticsBackend.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure analytics schema: %w", err)
	}
	auditRepo := auditpg.NewViolationRepository(db)
	if err := auditRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}

	graphBackend, err := graph.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, cfg.Neo4jIndex, executor)
	if err != nil {
		return nil, fmt.Errorf("init graph backend: %w", err)
	}

	keywordBackend, err := keyword.Open(cfg.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	// Alerting and event streaming are best-effort: a missing NATS server
	// degrades observability, never retrieval.
	sink, err := natssink.NewWithOptions(cfg.NATSURL, cfg.NATSAlertSubject, cfg.NATSEventSubject, natssink.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		logger.Warn("nats_unavailable", "url", cfg.NATSURL, "error", err)
		sink = nil
	}

	obsCfg, err := config.LoadObservabilityConfig(cfg.ObservabilityConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load observability config: %w", err)
	}

	prom := metrics.NewRetrievalMetrics("retrieval-core")

	tracerOpts := []tracing.Option{tracing.WithAlertRecorder(prom)}
	if sink != nil {
		tracerOpts = append(tracerOpts,
			tracing.WithAlertSink(sink),
			tracing.WithEventPublisher(sink),
		)
	}
	store := tracing.NewEventStore(cfg.MetricsMaxEvents)
	tracer := tracing.NewTracer(store, obsCfg, logger, tracerOpts...)

	// A broken policy config keeps the service up but fails every request
	// safe; leaking unfiltered results would be worse than downtime.
	policyCfg, err := config.LoadPolicyConfig(cfg.PolicyConfigPath)
	if err != nil {
		logger.Error("policy_config_load_failed", "path", cfg.PolicyConfigPath, "error", err)
		policyCfg = nil
	}

	fanout := usecase.NewFanoutCoordinator(
		[]ports.SearchBackend{graphBackend, keywordBackend, analyticsBackend},
		usecase.FanoutConfig{
			Timeout:   time.Duration(cfg.FanoutTimeoutMS) * time.Millisecond,
			RateRPS:   cfg.BackendRateRPS,
			RateBurst: cfg.BackendRateBurst,
		},
	)
	fusion := usecase.NewFusionEngine(cfg.FusionRRFK, logger)
	policy := usecase.NewPolicyEngine(policyCfg, logger)

	searchUC := usecase.NewSearchUseCase(fanout, fusion, policy, tracer, auditRepo, logger, cfg.DefaultSearchLimit)
	evaluateUC := usecase.NewEvaluateUseCase()

	return &App{
		Config: cfg,
		Logger: logger,

		SearchUC:   searchUC,
		EvaluateUC: evaluateUC,
		Tracer:     tracer,
		Metrics:    prom,
		Sink:       sink,

		closeFn: func() {
			tracer.Close()
			if sink != nil {
				sink.Close()
			}
			_ = keywordBackend.Close()
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = graphBackend.Close(closeCtx)
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
