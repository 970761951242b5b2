package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hopwatch",
	Short: "Watch AT HOP cards for new transactions",
	Long: `hopwatch signs in to the AT HOP portal, polls each configured card's
transaction history, stores anything new in a local SQLite database and
posts a Slack message for every new transaction.

All configuration comes from AT_* environment variables; see the README
for the full list.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
