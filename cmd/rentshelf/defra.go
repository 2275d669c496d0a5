package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

		"github.com/jackzampolin/rentshelf/internal/defra"
)

var defraCmd = &cobra.Command{
	Use:   "defra",
	Short: "Manage the DefraDB container",
	Long: `Manage the DefraDB container lifecycle.

DefraDB holds the catalog, rentals, reading positions, and annotations. The
database runs in a Docker container with data persisted to
~/.rentshelf/defradb/. These commands do nothing useful when defra.url
points at an externally managed DefraDB.

Examples:
  rentshelf defra start   # Start the DefraDB container
  rentshelf defra stop    # Stop the container (data preserved)
  rentshelf defra status  # Check container status
  rentshelf defra logs    # View container logs`,
}

var defraStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DefraDB container",
	Long: `Start the DefraDB container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: withContainer(func(cmd *cobra.Command, mgr *defra.Container) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Starting DefraDB...")
		if err := mgr.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start DefraDB: %w", err)
		}
		fmt.Fprintf(out, "DefraDB is running at %s\n", mgr.URL())
		return nil
	}),
}

var defraStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the DefraDB container",
	Long: `Stop the DefraDB container.

This stops the container but preserves data. Use 'rentshelf defra start'
to restart it later.`,
	RunE: withContainer(func(cmd *cobra.Command, mgr *defra.Container) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Stopping DefraDB...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop DefraDB: %w", err)
		}
		fmt.Fprintln(out, "DefraDB stopped")
		return nil
	}),
}

var defraStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show DefraDB container status",
	RunE: withContainer(func(cmd *cobra.Command, mgr *defra.Container) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case defra.StatusRunning:
			fmt.Fprintf(out, "Status: %s\n", status)
			fmt.Fprintf(out, "URL: %s\n", mgr.URL())
			if err := defra.NewClient(mgr.URL()).HealthCheck(ctx); err != nil {
				fmt.Fprintf(out, "Health: unhealthy (%v)\n", err)
			} else {
				fmt.Fprintln(out, "Health: healthy")
			}
		case defra.StatusStopped:
			fmt.Fprintf(out, "Status: %s (use 'rentshelf defra start' to start)\n", status)
		case defra.StatusNotFound:
			fmt.Fprintf(out, "Status: %s (use 'rentshelf defra start' to create)\n", status)
		default:
			fmt.Fprintf(out, "Status: %s\n", status)
		}
		return nil
	}),
}

var logsTail string

var defraLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show DefraDB container logs",
	RunE: withContainer(func(cmd *cobra.Command, mgr *defra.Container) error {
		logs, err := mgr.Logs(cmd.Context(), logsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), logs)
		return nil
	}),
}

var defraRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the DefraDB container",
	Long: `Remove the DefraDB container.

This stops and removes the container. Data in ~/.rentshelf/defradb/
is NOT deleted - only the container is removed.`,
	RunE: withContainer(func(cmd *cobra.Command, mgr *defra.Container) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Removing DefraDB container...")
		if err := mgr.Remove(cmd.Context()); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}
		fmt.Fprintln(out, "DefraDB container removed (data preserved)")
		return nil
	}),
}

var defraWaitTimeout time.Duration

var defraWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for DefraDB to be ready",
	Long: `Wait for DefraDB to be ready to accept connections.

This is useful in scripts to ensure DefraDB is fully started
before running other commands.`,
	RunE: withContainer(func(cmd *cobra.Command, mgr *defra.Container) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Waiting for DefraDB (timeout: %s)...\n", defraWaitTimeout)
		if err := mgr.WaitReady(cmd.Context(), defraWaitTimeout); err != nil {
			return fmt.Errorf("DefraDB not ready: %w", err)
		}
		fmt.Fprintln(out, "DefraDB is ready")
		return nil
	}),
}

func init() {
	defraCmd.AddCommand(defraStartCmd)
	defraCmd.AddCommand(defraStopCmd)
	defraCmd.AddCommand(defraStatusCmd)
	defraCmd.AddCommand(defraLogsCmd)
	defraCmd.AddCommand(defraRemoveCmd)
	defraCmd.AddCommand(defraWaitCmd)

	defraLogsCmd.Flags().StringVar(&logsTail, "tail", "100", "Number of lines to show from the end")
	defraWaitCmd.Flags().DurationVar(&defraWaitTimeout, "timeout", 30*time.Second, "Timeout waiting for DefraDB")

	rootCmd.AddCommand(defraCmd)
}

var errExternalDefra = errors.New("defra.url is set: DefraDB is managed outside rentshelf")

// withContainer builds the configured DefraDB container handle for a
// subcommand and closes it afterwards.
func withContainer(run func(*cobra.Command, *defra.Container) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		if cfg.DefraURL() != "" {
			return errExternalDefra
		}

		c, err := defra.NewContainer(defra.SpecFromConfig(cfg.Defra, h.DefraDataPath()))
		if err != nil {
			return err
		}
		defer c.Close()
		return run(cmd, c)
	}
}
