package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vork-21/payplan/pkg/analysis"
	"github.com/Vork-21/payplan/pkg/clock"
	"github.com/Vork-21/payplan/pkg/logger"
	"github.com/Vork-21/payplan/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that accepts ledger uploads and serves the
analysis results: quality report, dashboard, collection priorities,
payment projections, and CSV/Excel downloads.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "Listen port (overrides SERVER_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	port := cfg.ServerPort
	if override, _ := cmd.Flags().GetString("port"); override != "" {
		port = override
	}

	runs := store.NewMemory()
	service := analysis.New(clock.System{}, runs, cfg.PaymentDay, logger.WithComponent("analysis"))
	server := NewServer(service, runs, cfg, logger.WithComponent("http"))

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
