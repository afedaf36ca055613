// Package main implements the buildscout CLI for learning and matching
// opponent build orders.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is an explicit config file; empty means the default path.
	configPath string
	// dataDir overrides store.data_dir from the config.
	dataDir string
	// outputAsJSON switches command output from tables to JSON.
	outputAsJSON bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "buildscout",
	Short: "Learn and recognize opponent build orders",
	Long: `buildscout keeps a library of labeled build order patterns and ranks
stored patterns by similarity to a new opponent build.

Build orders are read from JSON files holding either an array of entries or
a game object with a "build_order" array. Entries are plain strings such as
"14 0:18 Spawning Pool" or objects with name, supply and time fields.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/buildscout/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "pattern library directory (overrides store.data_dir)")
	rootCmd.PersistentFlags().BoolVar(&outputAsJSON, "json", false, "output results as JSON")
}
