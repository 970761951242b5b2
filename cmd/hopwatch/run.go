package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hopwatch/internal/config"
	"hopwatch/internal/logger"
	"hopwatch/internal/metrics"
	"hopwatch/internal/pipeline"
	"hopwatch/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scrape loop until interrupted",
	RunE:  runLoop,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, args []string) error {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database failed")
	}
	defer st.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go m.Serve(ctx, cfg.MetricsAddr, log)
	}

	p := pipeline.New(st, buildNotifier(cfg, log), m)
	sched := scheduler.New(cfg, buildSession(cfg), p, m)

	log.Info().
		Int("cards", len(cfg.Cards)).
		Str("database", cfg.DatabaseFile).
		Dur("period", cfg.Period).
		Msg("hopwatch starting")

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
