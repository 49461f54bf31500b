package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/djpapzin/papzincrew/internal/config"
	"github.com/djpapzin/papzincrew/internal/logger"
	"github.com/djpapzin/papzincrew/internal/server"
)

func main() {
	cfg, err := config.Load(os.Getenv("PAPZIN_CONFIG"))
	if err != nil {
		logger.Error("invalid configuration", logger.Err(err))
		os.Exit(1)
	}

	srv, err := server.New(cfg)
	if err != nil {
		logger.Error("failed to initialize server", logger.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		srv.Shutdown(shutdownCtx)
		done()
		cancel()
		os.Exit(0)
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Error("server exited", logger.Err(err))
		os.Exit(1)
	}
}
