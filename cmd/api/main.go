package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"penwise/internal/analysis"
	"penwise/internal/app"
	"penwise/internal/assist"
	"penwise/internal/cache"
	"penwise/internal/config"
	"penwise/internal/export"
	"penwise/internal/logging"
	"penwise/internal/search"
	"penwise/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogEncoding)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}, logger)
	if err != nil {
		logger.Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	migrations := store.Migrations()
	if cfg.MigrationsDir != "" {
		migrations = os.DirFS(cfg.MigrationsDir)
	}
	if err := store.ApplyMigrations(ctx, db, migrations, logger.With("component", "migrate")); err != nil {
		logger.Fatalw("migrations failed", "error", err)
	}
	dataStore := store.NewPostgresStore(db)

	responses := cache.Layered{cache.NewMemory(cfg.CacheSize, cfg.CacheTTL)}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := cache.NewRedis(cfg.RedisURL, "penwise:", cfg.CacheTTL, logger)
		if err != nil {
			logger.Fatalw("redis connection failed", "error", err)
		}
		defer redisStore.Close()
		responses = append(responses, redisStore)
		logger.Infow("using redis for shared response cache")
	}

	checker := newChecker(ctx, cfg, responses, logger)

	pgfts := search.NewPgFTS(db)
	var primary search.Backend
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meili.Close()
		primary = meili
	}
	searchService := search.NewService(primary, pgfts, pgfts, logger)

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithSearch(searchService),
		app.WithExporter(export.NewService(cfg.ChromePath, logger)),
		app.WithCitations(assist.NewCitations(cfg.CitationAPIURL, cfg.CitationMailto, responses, nil, logger)),
	}
	if cfg.OllamaURL != "" {
		opts = append(opts, app.WithDefiner(assist.NewDefiner(cfg.OllamaURL, cfg.OllamaModel, responses, rate.NewLimiter(rate.Every(time.Second), 2), logger)))
	}
	if cfg.ArchiveEnabled() {
		archive, err := export.NewArchive(ctx, export.ArchiveConfig{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		}, logger)
		if err != nil {
			logger.Fatalw("export archive unavailable", "error", err)
		}
		opts = append(opts, app.WithArchive(archive))
	}

	service := app.New(cfg, dataStore, checker, opts...)
	defer service.Shutdown()
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warnw("bootstrap failed, will retry on next restart", "error", err)
	}
	go searchService.ReindexAll(ctx)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.AnalysisTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Infow("penwise api listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("shutdown error", "error", err)
	}
}

// newChecker assembles the analysis providers. A shared dictionary file, if
// configured, is watched and reloaded for the life of ctx.
func newChecker(ctx context.Context, cfg config.Config, responses cache.Store, logger *zap.SugaredLogger) *analysis.Checker {
	var providers []analysis.Provider
	if cfg.LanguageToolEnabled() {
		providers = append(providers, analysis.NewLanguageTool(cfg.LanguageToolURL, cfg.LanguageToolLanguage, cfg.LanguageToolPerMinute))
	}
	if cfg.HeuristicsEnabled || len(providers) == 0 {
		providers = append(providers, analysis.NewHeuristics())
	}

	opts := []analysis.CheckerOption{
		analysis.WithCache(analysis.NewStoreCache(responses, logger)),
		analysis.WithTimeout(cfg.AnalysisTimeout),
		analysis.WithLogger(logger),
	}
	if cfg.DictionaryFile != "" {
		shared := analysis.NewDictionary()
		if err := analysis.WatchDictionaryFile(ctx, cfg.DictionaryFile, shared, logger); err != nil {
			logger.Warnw("shared dictionary unavailable", "path", cfg.DictionaryFile, "error", err)
		} else {
			opts = append(opts, analysis.WithDictionary(shared))
		}
	}
	return analysis.NewChecker(providers, opts...)
}
