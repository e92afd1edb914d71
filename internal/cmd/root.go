// Package cmd implements the bittu CLI surface over the learning
// engine.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Rahiman13/Personal-assistant/internal/config"
	"github.com/Rahiman13/Personal-assistant/internal/engine"
	"github.com/Rahiman13/Personal-assistant/internal/logging"
)

var (
	flagConfig string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "bittu",
	Short: "personal assistant that learns your habits",
	Long: `bittu - personal assistant that learns your habits
  - record what you do, it finds the patterns
  - get suggestions for what usually comes next
  - tell it your preferences, or let it infer them`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default ~/.bittu/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(habitsCmd)
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the config file path and loads it.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.Logging.Debug = true
	}
	return cfg, nil
}

// setupEngine builds the logger and engine for a command invocation.
// The caller owns the returned engine and must Close it.
func setupEngine(ctx context.Context) (*engine.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Debug = cfg.Logging.Debug
	switch cfg.Logging.Level {
	case "debug":
		logCfg.Level = slog.LevelDebug
	case "warn":
		logCfg.Level = slog.LevelWarn
	case "error":
		logCfg.Level = slog.LevelError
	}
	logger := logging.New(logCfg)

	eng, err := engine.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}
