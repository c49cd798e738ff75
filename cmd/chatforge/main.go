package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configPath overrides CONFIG_PATH when set.
var configPath string

var rootCmd = &cobra.Command{
	Use:           "chatforge",
	Short:         "Multi-vendor chat gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return nil
		}
		return os.Setenv("CONFIG_PATH", configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: $CONFIG_PATH or config.toml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chatforge: %v\n", err)
		os.Exit(1)
	}
}
