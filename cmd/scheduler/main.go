// Command scheduler executes due scheduled transfers without serving HTTP.
// Run it from cron with -once, or as a long-lived worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mobile-money-gateway/config"
	"mobile-money-gateway/internal/app"
	"mobile-money-gateway/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: "mobile-money-scheduler"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize gateway")
	}
	defer gw.Close()

	if !*once {
		gw.Scheduler.Run(ctx)
		return
	}

	report, err := gw.Scheduler.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled transfer pass failed")
		gw.Close()
		os.Exit(1)
	}
	if report == nil {
		log.Info().Msg("another scheduler holds the lock, nothing to do")
		return
	}
	log.Info().
		Int("executed", report.Executed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("scheduled transfer pass done")
}
