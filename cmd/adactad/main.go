package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"adacta/internal/config"
	"adacta/internal/daemon"
	"adacta/internal/index"
	"adacta/internal/logging"
	"adacta/internal/pipeline"
	"adacta/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := storage.Open(cfg, logger)
	if err != nil {
		logger.Error("open storage", logging.Error(err))
		os.Exit(1)
	}

	ix, err := index.Open(cfg, logger)
	if err != nil {
		logger.Error("open search index", logging.Error(err))
		os.Exit(1)
	}

	pipe, err := pipeline.New(cfg, store, logger, buildTransforms(cfg, ix)...)
	if err != nil {
		ix.Close()
		logger.Error("build pipeline", logging.Error(err))
		os.Exit(1)
	}

	d, err := daemon.New(cfg, store, ix, pipe, logger)
	if err != nil {
		ix.Close()
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("adactad shutting down")
}
