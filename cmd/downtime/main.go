package main

import (
	"fmt"
	"os"

	"github.com/cuemby/downtime/pkg/client"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "downtime",
	Short: "Downtime - scheduled network downtime for remote clients",
	Long: `Downtime blocks network access on remote clients during a daily
window and unblocks it outside the window.

Run the controller with "downtime server"; every other command talks to a
running controller over its gRPC API.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Downtime version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("server", envOr("DOWNTIME_SERVER", "localhost:7400"), "Controller API address (or unix:///path for the read-only socket)")

	// Add subcommands
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(unpauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(applyCmd)
}

// connect dials the controller named by --server
func connect(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("server")
	c, err := client.NewClient(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller: %v", err)
	}
	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
