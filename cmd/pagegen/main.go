package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pagegen/internal/config"
	"pagegen/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pagegen",
	Short: "Generate Angular pages from a component library",
	Long: `pagegen analyzes a library of reusable Angular components, selects the
ones a page request needs, and generates the page with an LLM. Every generated
page passes through an audit loop: a verifier model reports findings and a
refiner model repairs them until the code is clean or the iteration budget runs
out.

Run "pagegen serve" to start the HTTP API used by the web frontend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if strings.EqualFold(cfg.Logging.Format, "console") {
			zcfg = zap.NewDevelopmentConfig()
		}
		level, err := zapcore.ParseLevel(cfg.Logging.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
		if cfg.Logging.File != "" {
			zcfg.OutputPaths = []string{cfg.Logging.File}
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.SetLogger(logger, cfg.Logging.Categories)
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
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Operation timeout for one-shot commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(componentsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
