package cmd

import (
	"github.com/spf13/cobra"

	"github.com/prawko/prawko/internal/config"
	"github.com/prawko/prawko/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "prawko",
	Short:        "Offline driving theory exam trainer",
	Long:         "prawko is a terminal trainer for the driving licence theory exam, with timed mock exams, adaptive learning and offline media.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PRAWKO_DB env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides PRAWKO_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("data-url", "", "Content origin URL (overrides PRAWKO_DATA_URL)")
	rootCmd.Flags().Bool("no-splash", false, "Skip the welcome screen")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(downloadedCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then PRAWKO_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// loadConfig reads the environment and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DBPath, err = resolveDBPath(cmd); err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("data-url"); v != "" {
		cfg.DataURL = config.NormalizeDataURL(v)
	}
	return cfg, cfg.Validate()
}
