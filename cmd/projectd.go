package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/diagramdesk/internal/app"
	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/projectservice"
	"github.com/zjrosen/diagramdesk/internal/tracing"
)

var projectdCmd = &cobra.Command{
	Use:   "projectd",
	Short: "Run the reference project service",
	Long: `Run an in-memory project service that exposes the HTTP API the workspace
synchronises with. Projects are lost when it stops.

The service listens on server.addr from the config (default :8420).

Example:
  diagramdesk projectd                 # Start on default port
  diagramdesk projectd --addr :9000    # Start on port 9000`,
	RunE: runProjectd,
}

var projectdAddr string

func init() {
	rootCmd.AddCommand(projectdCmd)

	projectdCmd.Flags().StringVar(&projectdAddr, "addr", "", "Address to listen on (overrides config)")
}

func runProjectd(_ *cobra.Command, _ []string) error {
	// Priority: --addr flag > config server.addr
	addr := projectdAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	provider, err := tracing.NewProvider(app.TracingConfig(cfg.Tracing))
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	server, err := projectservice.NewServer(projectservice.ServerConfig{
		Addr:   addr,
		Tracer: provider.Tracer(),
	})
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return fmt.Errorf("creating project service: %w", err)
	}

	// Handle shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Project service started on port %d\n", server.Port())
	fmt.Println("Press Ctrl+C to stop")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error(log.CatServer, "Error stopping project service", "error", err)
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Error(log.CatServer, "Error shutting down tracing", "error", err)
	}

	fmt.Println("Project service stopped")
	return nil
}
