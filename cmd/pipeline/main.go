package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdr-pipeline/internal/config"
	"cdr-pipeline/internal/httpapi"
	"cdr-pipeline/internal/runlog"
	"cdr-pipeline/internal/runner"
	"cdr-pipeline/internal/sink"
	"cdr-pipeline/internal/source"
	"cdr-pipeline/internal/stats"
	"cdr-pipeline/pkg/logger"
	"cdr-pipeline/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	persistent := sink.NewPostgresSink(db)
	if err := persistent.EnsureSchema(rootCtx); err != nil {
		log.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	historyRepo := runlog.NewPostgresRepo(db)
	if err := historyRepo.EnsureSchema(rootCtx); err != nil {
		log.Error("run history schema init failed", "err", err)
		os.Exit(1)
	}
	history := runlog.NewService(historyRepo, log)

	// Redis is optional: without it, concurrent triggers of one sink kind are
	// serialized per process only.
	var lock runner.Lock
	if addr := cfg.RedisAddr(); addr != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		lock = runner.NewRedisLock(rdb)
	} else {
		log.Warn("redis not configured, run locks are process-local")
	}

	fetcher := source.NewClient(source.ClientConfig{
		BaseURL:     cfg.Source.BaseURL,
		FetchLimit:  cfg.Source.FetchLimit,
		MaxAttempts: cfg.Source.FetchAttempts,
		RetryDelay:  cfg.Source.RetryDelay,
		Logger:      log,
	})
	remote := sink.NewRemoteSink(cfg.External.UploadURL, 10*time.Second)

	runs := runner.New(fetcher, persistent, remote, lock, runner.Config{
		RunTimeout:        cfg.Run.Timeout,
		IncludeUnanswered: cfg.External.IncludeUnanswered,
	}, log)
	runs.SetRecorder(history)
	statistics := stats.NewService(fetcher)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{Runner: runs, Stats: statistics, Runs: history, DB: db})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Triggers run the pipeline synchronously; responses can take up to a
		// full run timeout.
		WriteTimeout: cfg.Run.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("pipeline listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
