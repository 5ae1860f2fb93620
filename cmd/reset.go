package cmd

import (
	"context"
	"os"

	"example.com/retailpos/terminal/config"
	"example.com/retailpos/terminal/internal/services"
	"example.com/retailpos/terminal/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all unsynced pending sales",
	Long: `Remove every unsynced pending sale and its queued sync action,
leaving already-synced history untouched. Used when opening a new
shift on a terminal with stale local state.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	st, err := store.NewBadgerStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close local store")
		}
	}()

	// The sync engine and gate are not needed to delete local state.
	sales := services.NewSaleService(st, nil, nil)

	deleted, err := sales.DeleteAllPendingSales(context.Background())
	if err != nil {
		return err
	}

	log.Info().Int("deleted", deleted).Msg("Unsynced pending sales removed")
	return nil
}
