package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/buildtimes/pkg/server"
)

var (
	serveHost string
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard directory over HTTP",
	Long: `Serves the directory holding dashboard_data.json. If the configured port is
in use the next port is tried.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Listen port (overrides server.port)")
	serveCmd.Flags().StringVar(&serveDir, "dir", "",
		"Directory to serve (defaults to the output document's directory)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	if flags.Changed("host") {
		cfg.Server.Host = serveHost
	}

	if flags.Changed("port") {
		cfg.Server.Port = servePort
	}

	if flags.Changed("dir") {
		cfg.Server.Dir = serveDir
	}

	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("validating server config: %w", err)
	}

	// Set up context with signal handling.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	srv := server.NewServer(log, &cfg.Server, cfg.ServeDir())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting dashboard server: %w", err)
	}

	log.WithField("url", "http://"+srv.Addr()+"/").
		Info("Dashboard available")

	// Wait for shutdown signal.
	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down dashboard server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping dashboard server: %w", err)
	}

	return nil
}
