package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"surveysearch/internal/config"
	"surveysearch/internal/handler"
	"surveysearch/internal/metrics"
	"surveysearch/internal/repository"
	"surveysearch/internal/resilience"
	"surveysearch/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("survey search starting",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)
	for _, w := range cfg.Warnings {
		logger.Warn("configuration value ignored", zap.String("detail", w))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	gin.SetMode(cfg.Server.GinMode)

	repo, err := repository.NewPostgresRepository(cfg.GetPostgreSQLDSN(), repository.PoolOptions{
		MaxConnections:     cfg.PostgreSQL.MaxConnections,
		MaxIdleConnections: cfg.PostgreSQL.MaxIdleConnections,
		ConnMaxLifetime:    cfg.PostgreSQL.ConnMaxLifetime,
		ConnMaxIdleTime:    cfg.PostgreSQL.ConnMaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	executor := repository.NewSafeExecutor(repo.DB(), repository.ExecutorLimits{
		DefaultMaxRows: cfg.Executor.DefaultMaxRows,
		MaxRowsCeiling: cfg.Executor.MaxRowsCeiling,
		DefaultTimeout: cfg.Executor.DefaultTimeout,
		TimeoutCeiling: cfg.Executor.TimeoutCeiling,
	}, logger.Named("executor"))

	lexicon, err := config.LoadLexicon(cfg.Lexicon.Path)
	if err != nil {
		return err
	}
	markers := cfg.Negation.Markers
	if len(markers) == 0 {
		markers = lexicon.NegationMarkers()
	}

	retrievalMetrics := metrics.NewRetrievalMetrics()

	// Model clients are built once and shared read-only by every request.
	openaiClient := service.NewOpenAIClient(&cfg.OpenAI, logger.Named("openai"))
	if openaiClient.IsEnabled() {
		logger.Info("OpenAI client initialized",
			zap.String("api_base", cfg.OpenAI.APIBase),
			zap.String("chat_model", cfg.OpenAI.ChatModel),
			zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
			zap.Int("embedding_dimensions", cfg.OpenAI.EmbeddingDimensions),
			zap.Float64("requests_per_second", cfg.OpenAI.RequestsPerSecond),
		)
	} else {
		logger.Warn("OpenAI is disabled: parsing and embeddings will fail until OPENAI_API_KEY is set")
	}

	upstream := resilience.NewGuard(resilience.Policy{
		Attempts:  cfg.Resilience.RetryMaxAttempts,
		Backoff:   cfg.Resilience.RetryBackoff,
		Breaker:   cfg.Resilience.BreakerEnabled,
		TripAfter: uint32(max(cfg.Resilience.BreakerTripAfter, 0)),
		Cooldown:  cfg.Resilience.BreakerCooldown,
	}, logger.Named("resilience"))

	parser := service.NewLLMQueryParser(openaiClient, upstream, logger.Named("parser"))
	embedder := service.NewOpenAIEmbedder(openaiClient, cfg.OpenAI.EmbeddingDimensions, upstream, logger.Named("embedder"))

	relevance, err := service.NewRelevanceAdapter(
		executor,
		embedder,
		cfg.Retrieval.VectorDimensions,
		service.NewNegationMatcher(cfg.Negation.Window, markers),
		logger.Named("relevance"),
	)
	if err != nil {
		return fmt.Errorf("relevance adapter: %w", err)
	}

	opts := service.RetrievalOptions{
		FilterDefaultLimit:      cfg.Retrieval.FilterDefaultLimit,
		FilterMaxLimit:          cfg.Retrieval.FilterMaxLimit,
		UnfilteredSampleLimit:   cfg.Retrieval.UnfilteredSampleLimit,
		SemanticDefaultLimit:    cfg.Retrieval.SemanticDefaultLimit,
		SemanticDistanceCeiling: cfg.Retrieval.SemanticDistanceCeiling,
		HybridDefaultLimit:      cfg.Retrieval.HybridDefaultLimit,
		CallBudget:              cfg.Retrieval.CallBudget,
	}
	strategyLogger := logger.Named("strategy")
	controller := service.NewController(
		[]service.Strategy{
			service.NewFilterStrategy(executor, opts, strategyLogger),
			service.NewSemanticStrategy(relevance, opts, strategyLogger),
			service.NewHybridStrategy(relevance, opts, strategyLogger),
		},
		service.NewRanker(service.RankingWeights{
			Vector:        cfg.Ranking.VectorWeight,
			Keyword:       cfg.Ranking.KeywordWeight,
			DistanceRange: cfg.Ranking.DistanceRange,
		}),
		retrievalMetrics,
		logger.Named("fallback"),
	)
	selector := service.NewSelector(
		service.NewCorrector(lexicon, logger.Named("correction"), retrievalMetrics),
		logger.Named("selector"),
	)
	searchService := service.NewSearchService(parser, selector, controller, repo, logger.Named("search"))
	defer searchService.Wait()

	searchHandler := handler.NewSearchHandler(searchService, cfg.Search.DefaultLimit, cfg.Search.MaxLimit, logger.Named("http"))
	feedbackHandler := handler.NewFeedbackHandler(searchService)

	router := gin.New()
	router.Use(gin.Recovery(), handler.AccessLog(logger.Named("http")))

	corsConfig := cors.DefaultConfig()
	if slices.Contains(cfg.Server.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}
	corsConfig.AllowMethods = cfg.Server.AllowedMethods
	corsConfig.AllowHeaders = cfg.Server.AllowedHeaders
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := repo.DB().PingContext(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    "survey-search",
			"version":    Version,
			"ai_enabled": openaiClient.IsEnabled(),
		})
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})
	router.GET("/metrics", gin.WrapH(retrievalMetrics.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/search", searchHandler.Search)
		apiV1.POST("/search/stream", searchHandler.SearchStream)
		apiV1.GET("/respondents/:id", searchHandler.GetRespondent)
		apiV1.POST("/feedback", feedbackHandler.Submit)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
