package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rendezvous-relay/relay/internal/config"
	"github.com/rendezvous-relay/relay/internal/logger"
	"github.com/rendezvous-relay/relay/internal/registry"
	"github.com/rendezvous-relay/relay/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Get configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(cfg, registry.New(), log)

	status, err := srv.Start()
	if err != nil {
		return err
	}
	log.Info(status, zap.String("metrics", srv.MetricsAddr()))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", zap.String("signal", sig.String()))

	status, err = srv.Stop()
	if err != nil {
		return err
	}
	log.Info(status)
	return nil
}
