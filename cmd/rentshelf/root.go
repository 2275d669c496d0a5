package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/config"
	"github.com/jackzampolin/rentshelf/internal/home"
	"github.com/jackzampolin/rentshelf/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	serverURL    string
	userName     string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "rentshelf",
	Short: "Rent PDF books and read them in the terminal",
	Long: `rentshelf lends PDF books for a fixed rental period and serves them to a
reader that renders only the pages near the viewport.

It includes:
  - An HTTP server backed by DefraDB for the catalog, rentals, and annotations
  - A terminal reader that remembers where you stopped
  - Bookmarks and quotes captured from selected text
  - Offline reading of local PDF files`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.rentshelf/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "rentshelf home directory (default: ~/.rentshelf)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&serverURL, "server", "", "server URL (default: server.url from config)",
	)
	rootCmd.PersistentFlags().StringVar(
		&userName, "user", "", "reader identity sent to the server (default: rentals.user from config)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, or error",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, err := api.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		api.SetOutput(format, cmd.OutOrStdout())
		if _, err := parseLevel(logLevel); err != nil {
			return err
		}
		// A broken config file is reported by the commands that read it, so
		// `config init --force` can still replace it.
		if userName == "" {
			if cfg, err := loadConfig(); err == nil {
				userName = cfg.Get().Rentals.User
			}
		}
		api.SetUser(userName)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	if serverURL != "" {
		return serverURL
	}
	cfg, err := loadConfig()
	if err != nil {
		return config.DefaultConfig().Server.URL
	}
	return cfg.Get().Server.URL
}

// getHome returns the home directory, creating it if needed.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

var loadedConfig *config.Manager

// loadConfig reads --config, or the home directory's config.yaml when one
// exists. It is loaded once per process.
func loadConfig() (*config.Manager, error) {
	if loadedConfig != nil {
		return loadedConfig, nil
	}
	path := cfgFile
	if path == "" {
		if h, err := home.New(homeDir); err == nil && h.ConfigExists() {
			path = h.ConfigPath()
		}
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}
	loadedConfig = mgr
	return mgr, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return level, nil
}

// newLogger builds the text logger every command shares.
func newLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(logLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
