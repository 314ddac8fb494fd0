package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/config"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/handlers"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/internal/observability"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/middleware"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/repositories"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/repositories/memory"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/repositories/postgres"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/repositories/vectorstore"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/conversation"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/embedding"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/providers"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/providers/ollama"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/rerank"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/retrieval"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/tools"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// Employee directory; DB is nil when the built-in directory is used
	DB        *postgres.DB
	Employees repositories.EmployeeRepository

	// Policy retrieval
	IndexFile *vectorstore.SQLite
	FullIndex *vectorstore.Index
	QAIndex   *vectorstore.Index
	Embedder  *embedding.Cached
	Reranker  rerank.Reranker
	Retriever *retrieval.Orchestrator

	// Conversation
	Tools        *tools.Registry
	Provider     providers.Provider
	Conversation *conversation.Loop

	// AuthMiddleware is nil when bearer auth is disabled
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
// Partially built dependencies are closed when a later step fails.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (deps *Dependencies, err error) {
	deps = &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = observability.NewMetrics(deps.Registry)

	defer func() {
		if err != nil {
			err = multierr.Append(err, deps.Close(ctx))
			deps = nil
		}
	}()

	if err := deps.initEmployees(ctx, cfg); err != nil {
		return deps, fmt.Errorf("failed to initialize employee directory: %w", err)
	}

	if err := deps.initRetrieval(ctx, cfg); err != nil {
		return deps, fmt.Errorf("failed to initialize policy retrieval: %w", err)
	}

	if err := deps.initConversation(cfg); err != nil {
		return deps, fmt.Errorf("failed to initialize conversation loop: %w", err)
	}

	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initEmployees connects the Postgres directory, or seeds the built-in one when no database is configured
func (d *Dependencies) initEmployees(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Employees = memory.NewEmployeeRepository(memory.SampleEmployees()...)
		d.Logger.Warn("no database configured, using built-in employee directory")
		return nil
	}

	db, err := postgres.NewDB(ctx, *cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	d.Employees = postgres.NewEmployeeRepository(db, d.Logger)

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initRetrieval loads both policy corpora into memory and builds the orchestrator
func (d *Dependencies) initRetrieval(ctx context.Context, cfg *config.Config) error {
	file, err := vectorstore.OpenSQLite(ctx, cfg.Index.Path)
	if err != nil {
		return err
	}
	d.IndexFile = file

	full, err := file.Load(ctx, vectorstore.CorpusFull)
	if err != nil {
		return err
	}
	qa, err := file.Load(ctx, vectorstore.CorpusQA)
	if err != nil {
		return err
	}

	embedder, err := embedding.NewCached(embedding.NewOllamaClient(embedding.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Timeout:   cfg.Embedding.Timeout,
		BatchSize: cfg.Embedding.BatchSize,
	}), cfg.Embedding.CacheSize)
	if err != nil {
		return err
	}
	d.Embedder = embedder

	d.FullIndex = vectorstore.NewIndex(vectorstore.CorpusFull, full, embedder)
	d.QAIndex = vectorstore.NewIndex(vectorstore.CorpusQA, qa, embedder)

	if cfg.Rerank.URL != "" {
		d.Reranker = rerank.NewHTTPClient(rerank.HTTPConfig{
			URL:     cfg.Rerank.URL,
			Model:   cfg.Rerank.Model,
			APIKey:  cfg.Rerank.APIKey,
			Timeout: cfg.Rerank.Timeout,
		})
	} else {
		d.Reranker = rerank.NewLexical()
	}

	d.Retriever = retrieval.NewOrchestrator(d.FullIndex, d.QAIndex, d.Reranker, retrieval.Options{
		FullK:    cfg.Retrieval.FullK,
		Sections: cfg.Retrieval.Sections,
		SectionK: cfg.Retrieval.SectionK,
		TopN:     cfg.Retrieval.TopN,
		MinScore: cfg.Retrieval.MinScore,
		Timeout:  cfg.Retrieval.Timeout,
	}, d.Logger.Named("retrieval"), d.Metrics)

	if d.FullIndex.Len() == 0 && d.QAIndex.Len() == 0 {
		d.Logger.Warn("policy index is empty, run hr-indexer to build it",
			zap.String("path", cfg.Index.Path))
	}
	d.Logger.Info("policy index loaded",
		zap.String("path", cfg.Index.Path),
		zap.Int("full_documents", d.FullIndex.Len()),
		zap.Int("qa_documents", d.QAIndex.Len()),
		zap.String("embedding_model", cfg.Embedding.Model))
	return nil
}

// initConversation builds the tool registry, the model gateway and the loop driving them
func (d *Dependencies) initConversation(cfg *config.Config) error {
	registry, err := tools.NewRegistry(d.Logger.Named("tools"), d.Metrics,
		tools.NewEmployeeDataTool(d.Employees, d.Logger.Named("tools")),
		tools.NewHRPolicyTool(d.Retriever),
	)
	if err != nil {
		return err
	}
	d.Tools = registry

	d.Provider = ollama.NewAdapter(providers.ProviderConfig{
		BaseURL: cfg.Model.BaseURL,
		Timeout: cfg.Model.Timeout,
		Headers: map[string]string{},
	})

	d.Conversation = conversation.NewLoop(d.Provider, d.Tools, conversation.Config{
		DefaultModel: cfg.Model.DefaultModel,
		MaxRounds:    cfg.Conversation.MaxRounds,
		ModelTimeout: cfg.Model.Timeout,
		KeepAlive:    cfg.Model.KeepAlive,
		Options: providers.Options{
			Temperature:     cfg.Model.Temperature,
			MaxOutputTokens: cfg.Model.MaxOutputTokens,
			ContextLength:   cfg.Model.ContextLength,
		},
	}, d.Logger.Named("conversation"), d.Metrics)

	d.Logger.Info("conversation loop initialized",
		zap.Strings("tools", registry.Names()),
		zap.String("model", cfg.Model.DefaultModel),
		zap.Int("max_rounds", cfg.Conversation.MaxRounds))
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if !cfg.AuthEnabled() {
		d.Logger.Warn("AUTH_JWT_SECRET not set, chat endpoint is unauthenticated")
		return
	}
	validator := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("bearer token auth enabled")
}

// ReadinessChecks returns the dependency checks served by /health/ready
func (d *Dependencies) ReadinessChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"model": func(ctx context.Context) error {
			if !d.Provider.IsAvailable(ctx) {
				return fmt.Errorf("%s endpoint unreachable", d.Provider.Name())
			}
			return nil
		},
		"policy_index": func(context.Context) error {
			if d.FullIndex.Len() == 0 && d.QAIndex.Len() == 0 {
				return errors.New("policy index is empty")
			}
			return nil
		},
	}
	if hc, ok := d.Employees.(repositories.HealthChecker); ok {
		checks["employee_store"] = hc.HealthCheck
	}
	return checks
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var err error
	if d.IndexFile != nil {
		err = multierr.Append(err, d.IndexFile.Close())
	}
	if d.DB != nil {
		if closeErr := d.DB.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close database: %w", closeErr))
		} else {
			d.Logger.Info("database connection closed")
		}
	}
	return err
}
