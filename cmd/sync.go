package cmd

import (
	"context"
	"os"

	"example.com/retailpos/terminal/config"
	"example.com/retailpos/terminal/internal/backend"
	"example.com/retailpos/terminal/internal/connectivity"
	"example.com/retailpos/terminal/internal/services"
	"example.com/retailpos/terminal/internal/store"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the sync queue once",
	Long:  `Run a single queue processing pass against the store backend and exit.`,
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()

	client := backend.NewClient(cfg.Backend)
	gate := connectivity.NewProbeGate(client, cfg.Backend.ProbeExpiry)
	if !gate.BackendAccessible(ctx) {
		return errors.New("backend unreachable, nothing synced")
	}

	syncer := services.NewSyncService(st, client)
	report, err := syncer.ProcessSyncQueue(ctx, nil)
	if err != nil {
		return err
	}

	succeeded, failed := 0, 0
	for _, r := range report.Results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	log.Info().
		Int("succeeded", succeeded).
		Int("failed", failed).
		Int("products_refreshed", len(report.UpdatedProducts)).
		Msg("Sync pass finished")

	if failed > 0 {
		return errors.Errorf("%d of %d actions failed and remain queued", failed, len(report.Results))
	}
	return nil
}
