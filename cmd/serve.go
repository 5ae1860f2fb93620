package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/retailpos/terminal/config"
	"example.com/retailpos/terminal/internal/api"
	"example.com/retailpos/terminal/internal/backend"
	"example.com/retailpos/terminal/internal/connectivity"
	"example.com/retailpos/terminal/internal/services"
	"example.com/retailpos/terminal/internal/store"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the terminal daemon",
	Long: `Start the local API server for the terminal UI together with the
background worker that periodically drains the sync queue against
the store backend.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Open the local store
	st, err := store.NewBadgerStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close local store")
		}
	}()

	// Initialize backend client, connectivity gate and services
	client := backend.NewClient(cfg.Backend)
	gate := connectivity.NewProbeGate(client, cfg.Backend.ProbeExpiry)
	syncer := services.NewSyncService(st, client)
	sales := services.NewSaleService(st, syncer, gate)

	// Bootstrap the reference caches if the backend is reachable
	if gate.BackendAccessible(ctx) {
		if err := syncer.RefreshReferenceData(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to bootstrap reference data, continuing with cached data")
		}
	}

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize and start the local API server
	server := api.NewServer(cfg, sales, syncer, st, gate)
	g.Go(server.Start)

	// Start the periodic sync job as a fallback for sales completed offline
	g.Go(func() error {
		log.Info().Dur("interval", cfg.Sync.Interval).Msg("Starting background sync job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Sync.Interval),
			gocron.NewTask(func() {
				if !gate.BackendAccessible(ctx) {
					return
				}
				if _, err := syncer.ProcessSyncQueue(ctx, nil); err != nil {
					log.Error().Err(err).Msg("Background sync pass failed")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Shut the server down once the context is cancelled
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Terminal daemon error")
		return err
	}

	log.Info().Msg("Terminal daemon shut down gracefully")
	return nil
}
