package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"election-coordinator/api"
	"election-coordinator/app"
	"election-coordinator/config"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize voting service: %v", err)
	}
	defer a.Close()

	var chain api.ChainInspector
	if a.Chain != nil {
		chain = a.Chain
	}
	if err := api.NewServer(a.Service, chain, logger).Run(ctx, cfg.Listen); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}
