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
	"strings"
	"syscall"
	"time"

	"carefinder/internal/config"
	"carefinder/internal/handler"
	"carefinder/internal/logger"
	"carefinder/internal/metrics"
	"carefinder/internal/repository"
	"carefinder/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
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

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	zl.Info("starting carefinder",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	gin.SetMode(cfg.Server.GinMode)

	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
		repository.Options{
			ECEFPrefilter:        cfg.Query.ECEFPrefilter,
			ECEFPrefilterPadding: cfg.Query.ECEFPrefilterPadding,
		},
	)
	if err != nil {
		return err
	}
	defer repo.Close()
	zl.Info("connected to PostgreSQL", zap.Bool("ecef_prefilter", cfg.Query.ECEFPrefilter))
	if cfg.Query.ECEFPrefilter {
		warnMissingECEF(repo, zl)
	}

	m := metrics.New()

	client, err := service.NewCompletionClient(cfg.Completion, m, zl)
	if err != nil {
		return err
	}
	zl.Info("completion client initialized",
		zap.String("provider", client.Provider()),
		zap.String("base_url", cfg.Completion.BaseURL),
		zap.String("model", client.Model()),
		zap.Float64("temperature", cfg.Completion.Temperature),
		zap.Bool("breaker", cfg.Completion.BreakerEnabled),
	)

	vocab := cfg.Vocabulary
	intentParser := service.NewIntentParser(
		service.NewIntentExtractor(client, vocab, cfg.Completion.Timeout),
		service.NewIntentNormalizer(vocab, cfg.Query.DefaultLimit),
		cfg.Query.DefaultLimit,
		zl,
	)
	queryService := service.NewQueryService(
		repo,
		intentParser,
		service.NewQueryPlanner(vocab),
		service.NewGeoRanker(),
		vocab,
		cfg.Query.StoreTimeout,
		m,
		zl,
	)
	probe := service.NewStatusProbe(client, cfg.Completion.ProbeTimeout, zl)

	queryHandler := handler.NewQueryHandler(queryService, probe, handler.DefaultExamples, zl)
	systemHandler := handler.NewSystemHandler(repo, handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	})

	router := gin.New()
	router.Use(handler.Recovery(zl), handler.RequestLogger(zl), m.Middleware())

	corsConfig := cors.DefaultConfig()
	origins := splitList(cfg.Server.AllowedOrigins)
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = splitList(cfg.Server.AllowedMethods)
	corsConfig.AllowHeaders = splitList(cfg.Server.AllowedHeaders)
	corsConfig.ExposeHeaders = []string{handler.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", systemHandler.Health)
	router.GET("/version", systemHandler.Version)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	nlq := router.Group("/api/nlq")
	{
		nlq.POST("/query", queryHandler.Query)
		nlq.POST("/query/stream", queryHandler.QueryStream)
		nlq.GET("/status", queryHandler.Status)
		nlq.GET("/examples", queryHandler.Examples)
	}
	router.NoRoute(handler.NotFound)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case sig := <-quit:
		zl.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	zl.Info("server stopped")
	return nil
}

// warnMissingECEF flags rows the nearest-N prefilter would skip
func warnMissingECEF(repo *repository.PostgresRepository, zl *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts, err := repo.CountMissingECEF(ctx)
	if err != nil {
		zl.Warn("could not check location_ecef coverage", zap.Error(err))
		return
	}
	for domain, n := range counts {
		if n > 0 {
			zl.Warn("rows without location_ecef are invisible to nearest-N queries; run nlqctl backfill-ecef",
				zap.String("domain", string(domain)),
				zap.Int("rows", n),
			)
		}
	}
}

// splitList parses a comma-separated env value
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
