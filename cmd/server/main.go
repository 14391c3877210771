package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/infrastructure/config"
	"github.com/tracewire/tracewire/internal/infrastructure/logging"
	"github.com/tracewire/tracewire/internal/server"
)

func main() {
	dev := flag.Bool("dev", false, "Development mode: colored console logs at debug level")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.NewDefault().Fatal("invalid configuration", zap.Error(err))
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Development || *dev)
	defer logger.Sync()

	srv, err := server.New(cfg, logger.Logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Fatal("server error", zap.Error(err))
	}

	// Shutdown flushes buffered spans; give the final flush a bounded
	// window before spans are counted as dropped.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
