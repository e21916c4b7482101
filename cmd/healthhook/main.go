package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/healthhook/internal/config"
	"github.com/dropDatabas3/healthhook/internal/http/server"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"

	// Adapters se registran vía init()
	_ "github.com/dropDatabas3/healthhook/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/healthhook/internal/store/adapters/pg"
	_ "github.com/dropDatabas3/healthhook/internal/store/adapters/sqlite"
)

var version = "dev"

func main() {
	// .env opcional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env: %v", err)
	}

	configPath := flag.String("config", envOr("CONFIG_PATH", "config/config.yaml"), "ruta al config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "healthhook",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg, server.Options{})
	if err != nil {
		lg.Fatal("wiring failed", logger.Err(err))
	}
	app.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.Handler,
		ReadTimeout:       config.Dur(cfg.Server.ReadTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.Dur(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("storage", cfg.Storage.Driver),
			logger.String("publish", cfg.Publish.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		lg.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			lg.Error("http server failed", logger.Err(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), config.Dur(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		lg.Warn("http shutdown", logger.Err(err))
	}
	if err := app.Close(shCtx); err != nil {
		lg.Warn("cleanup", logger.Err(err))
	}
	lg.Info("bye")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
