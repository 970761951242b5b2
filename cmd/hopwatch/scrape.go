package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hopwatch/internal/config"
	"hopwatch/internal/logger"
	"hopwatch/internal/metrics"
	"hopwatch/internal/pipeline"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run a single scrape cycle and exit",
	RunE:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}
	ctx := logger.WithContext(cmd.Context(), log)

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database failed")
	}
	defer st.Close()

	session := buildSession(cfg)
	if !session.Valid(ctx) {
		if err := session.Login(ctx); err != nil {
			return fmt.Errorf("sign-in failed: %w", err)
		}
	}

	p := pipeline.New(st, buildNotifier(cfg, log), metrics.New())
	total := 0
	for _, card := range cfg.Cards {
		total += p.Run(ctx, session, card)
	}

	fmt.Printf("%d new transactions\n", total)
	return nil
}
