// Package cli implements the gametunnel command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gametunnel/internal/app"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gametunnel",
	Short: "Adaptive relay selection for game traffic",
	Long: `gametunnel - adaptive relay selection for game traffic

  Probes the configured relay servers, scores them on smoothed latency and
  reliability, and keeps the best one selected for the tunnel.

  Quick start:
    gametunnel servers
    gametunnel test --all
    gametunnel monitor
    gametunnel tui

  Core features:
    • Synchronized TCP/UDP latency probe rounds with parallel workers
    • EWMA latency scoring with failure penalties and switch hysteresis
    • Live dashboard API with websocket push
    • Persistent probe history per server`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dbPath, _ := cmd.Flags().GetString("db")
		logLevel, _ := cmd.Flags().GetString("log-level")
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logLevel = "debug"
		}

		var err error
		appInstance, err = app.New(app.Options{
			ConfigPath: configPath,
			DBPath:     dbPath,
			LogLevel:   logLevel,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appInstance != nil {
			return appInstance.Close()
		}
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "database path")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gametunnel %s\n", version)
	},
}
