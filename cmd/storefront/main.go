package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront-system/internal/config"
	"storefront-system/internal/connections/database"
	"storefront-system/internal/connections/rabbitmq"
	"storefront-system/internal/logger"
	"storefront-system/internal/notifier"
	"storefront-system/internal/server"
)

func main() {
	mode := flag.String("mode", "", "run mode: web | notifier")
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if *mode != "web" && *mode != "notifier" {
		fmt.Fprintln(os.Stderr, "usage: storefront -mode web|notifier [-config config.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg := logger.New("storefront-"+*mode, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer rmq.Close()
	if err := rmq.DeclareTopology(); err != nil {
		lg.Fatal().Err(err).Msg("failed to declare rabbitmq topology")
	}

	switch *mode {
	case "web":
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			lg.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		srv := server.New(cfg, db, rmq, lg)
		if err := srv.Run(ctx); err != nil {
			lg.Fatal().Err(err).Msg("server exited")
		}
	case "notifier":
		if err := notifier.New(rmq, lg).Run(ctx); err != nil {
			lg.Fatal().Err(err).Msg("notifier exited")
		}
	}
	lg.Info().Msg("shutdown complete")
}
