package api

import (
	"context"
	"net/http"
	"time"

	"example.com/retailpos/terminal/config"
	"example.com/retailpos/terminal/internal/api/handlers"
	"example.com/retailpos/terminal/internal/connectivity"
	"example.com/retailpos/terminal/internal/services"
	"example.com/retailpos/terminal/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server is the local HTTP surface the terminal UI talks to
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates the local API server
func NewServer(cfg config.Config, sales *services.SaleService, syncer *services.SyncService, st store.Store, gate connectivity.Gate) *Server {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{config: cfg}

	router := gin.Default()
	router.Use(gin.Recovery())

	salesHandler := handlers.NewSalesHandler(sales, syncer, st, gate)
	salesHandler.RegisterRoutes(router)

	// Health check endpoint for the terminal daemon itself
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	server.router = router
	server.httpServer = &http.Server{
		Addr:        cfg.ServerAddress,
		Handler:     router,
		ReadTimeout: cfg.ServerTimeout,
	}

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting local API server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down local API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}
	return nil
}
