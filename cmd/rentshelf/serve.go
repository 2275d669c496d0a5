package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/rentshelf/internal/defra"
	"github.com/jackzampolin/rentshelf/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rentshelf server",
	Long: `Start the rentshelf HTTP server.

Unless defra.url points at an existing DefraDB, this also starts the DefraDB
container and stops it again when the server shuts down (Ctrl+C or SIGTERM).

The server provides:
  - /health              - Basic server health check
  - /ready               - Readiness check (includes DefraDB status)
  - /api/books/...       - Catalog, rentals, documents, and annotations

Examples:
  rentshelf serve                    # Start on the configured port (8080)
  rentshelf serve --port 3000        # Start on custom port
  rentshelf serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd.OutOrStdout())

		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		mgr.WatchConfig()
		cfg := mgr.Get()

		host, port := serveHost, servePort
		if host == "" {
			host = cfg.Server.Host
		}
		if port == "" {
			port = cfg.Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			Defra:         defra.SpecFromConfig(cfg.Defra, h.DefraDataPath()),
			DefraURL:      cfg.DefraURL(),
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port from config)")

	rootCmd.AddCommand(serveCmd)
}
