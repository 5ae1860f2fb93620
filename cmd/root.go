package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Offline-first sale synchronization engine for a POS terminal",
	Long: `A terminal-side daemon that keeps recording sales while the store
backend is unreachable, persists them in a durable local store, and
reconciles them with the backend once connectivity returns.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
