package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MQueryAPI/internal/cache"
	"MQueryAPI/internal/config"
	"MQueryAPI/internal/db"
	"MQueryAPI/internal/fragments"
	"MQueryAPI/internal/handler"
	"MQueryAPI/internal/logger"
	"MQueryAPI/internal/qparser"
	"MQueryAPI/internal/router"
	"MQueryAPI/internal/store"
)

func main() {
	debugFlag := flag.Bool("d", false, "enable debug logging")
	flag.Parse()

	cfg := config.LoadConfig()
	if err := logger.Init("."); err != nil {
		fmt.Fprintf(os.Stderr, "log init failed: %v\n", err)
		os.Exit(1)
	}
	logger.SetDebug(*debugFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	if err := db.RunMigrations(cfg.MigrationsDir, cfg.PostgresDSN); err != nil {
		logger.Error("migrations_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	if err := db.InitPostgres(cfg.PostgresDSN); err != nil {
		logger.Error("postgres_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer db.ClosePostgres()
	logger.Info("postgres_connected", nil)

	// Redis is optional: without it find results are not cached
	var results *cache.ResultCache
	db.InitRedis(cfg.RedisAddr)
	if err := db.PingRedis(ctx); err != nil {
		logger.Warn("result_cache_disabled", map[string]any{"error": err.Error()})
	} else {
		results = cache.NewResultCache(db.RDB, time.Duration(cfg.ResultCache.TTLSec)*time.Second)
		if err := results.Flush(ctx); err != nil {
			logger.Warn("result_cache_flush_failed", map[string]any{"error": err.Error()})
		}
	}

	frags, err := fragments.LoadDir(cfg.QueriesDir)
	if err != nil {
		logger.Error("fragments_load_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	opts, err := config.LoadParserOptions(cfg.ParserConfig)
	if err != nil {
		logger.Error("parser_config_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	h := handler.New(
		qparser.New(opts),
		cache.NewQueryCache(cfg.QueryCache.MaxBytes),
		frags,
		store.New(db.Pool, results),
	)
	mux := http.NewServeMux()
	if err := router.InitRoutes(mux, cfg, h); err != nil {
		logger.Error("router_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server_shutdown_failed", map[string]any{"error": err.Error()})
		}
	}()

	logger.Info("server_start", map[string]any{"port": cfg.Port})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server_error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("server_stopped", nil)
}
