package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hopwatch/internal/config"
	"hopwatch/internal/logger"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database schema and exit",
	RunE:  runInitDB,
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}
	ctx := logger.WithContext(cmd.Context(), log)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initdb: %w", err)
	}
	defer st.Close()

	fmt.Printf("database ready at %s\n", cfg.DatabaseFile)
	return nil
}
