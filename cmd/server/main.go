package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	webAdapter "factory-erp/internal/adapters/web"
	"factory-erp/internal/config"
	"factory-erp/internal/logger"
	"factory-erp/internal/platform"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	appLog, err := logger.NewZapLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := platform.Build(ctx, cfg, appLog)
	if err != nil {
		appLog.Fatal("startup failed", logger.Error(err))
	}
	defer rt.Close()
	rt.StartWorkers(ctx)

	handler := webAdapter.NewHandler(rt.Service, cfg.Server.AllowedOrigins, cfg.Auth.JWTSecret, appLog)
	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("shutdown", logger.Error(err))
		}
	}()

	appLog.Info("server starting", logger.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Fatal("server", logger.Error(err))
	}
	appLog.Info("server stopped")
}
