package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/notargets/DGAverage/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dgaverage",
	Short: "Tetrahedral field averaging",
	Long: `dgaverage converts region data deposited on a mesh into per-cell and
per-point values and gradients, using a pluggable averaging method
(basic, dual or moment), and writes them as text, zstd or SQLite fields.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "average.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// loadConfig reads cfgFile, falling back to the defaults when it does not exist
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(cfgFile); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No configuration file %s, using defaults\n", cfgFile)
		return config.Parse([]byte("{}"))
	}
	return config.Load(cfgFile)
}
