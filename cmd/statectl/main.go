// Command statectl inspects and edits persisted state slices.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ssadedin/go-statestore/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
	origin     string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "statectl",
	Short: "Inspect and edit persisted state slices",
	Long: `statectl reads the same configuration as the application (statestore.yaml
and STATESTORE_* environment variables) and operates on the records the store
rehydrates from at startup.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level, err := logLevel(cfg)
		if err != nil {
			return err
		}
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./statestore.yaml)")
	rootCmd.PersistentFlags().StringVar(&origin, "origin", "", "Override the configured origin")

	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "json", "Output format: json, yaml or fields")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Stop watching after this long (0 = until interrupted)")

	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func currentLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if origin != "" {
		cfg.Origin = origin
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// logLevel applies --verbose over the configured log_level.
func logLevel(cfg *config.Config) (zapcore.Level, error) {
	if verbose {
		return zapcore.DebugLevel, nil
	}
	return cfg.Level()
}
