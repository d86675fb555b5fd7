// Package main is the entry point for the rental calendar server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

var (
	configPath string
	addrFlag   string
	dataFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Rental calendar sync and export server",
	Long: `Imports partner booking feeds into a local reservation store and
publishes each property's bookings and maintenance as an iCal feed.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), resolveVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "HTTP listen address (overrides config and RENTALCAL_ADDR)")
	rootCmd.PersistentFlags().StringVar(&dataFlag, "data", "", "data directory for the SQLite database (overrides config and RENTALCAL_DATA)")

	rootCmd.AddCommand(serveCmd, syncCmd, versionCmd, healthCheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveVersion allows overriding the build version via environment
// (e.g., injected by a container build).
func resolveVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return version
}

func defaultConfigPath() string {
	if p := os.Getenv("RENTALCAL_CONFIG"); p != "" {
		return p
	}
	return "/data/config.yaml"
}
