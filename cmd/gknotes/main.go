package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kittclouds/gokitt/internal/config"
	"github.com/kittclouds/gokitt/pkg/gknlog"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gknotes",
	Short: "gknotes searches a GoKitt notes database with a structured query language",
	Long: `gknotes evaluates queries combining label/relation/ancestry filters
with fulltext search over a notes/branches/attributes/blobs SQLite
database, ranking results the same way the engine's library API does.`,
}

func init() {
	rootCmd.PersistentFlags().String("db", "./gknotes.db", "path to the notes database")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(searchCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	gknlog.Init(gknlog.Config{Level: gknlog.Level(level), JSONOutput: jsonOutput})
}

// loadConfig reads internal/config's viper-backed tunables, falling back
// to compiled-in defaults on any discovery/parse error so a missing or
// malformed gknotes.yaml never blocks a search.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		gknlog.Warnf("config: %v, using defaults", err)
		return config.Default()
	}
	return cfg
}
