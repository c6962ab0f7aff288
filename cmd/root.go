package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SmooAI/logdex/internal/config"
	"github.com/SmooAI/logdex/internal/index"
)

var (
	configPath string
	logDirName string
	workers    int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logDirName, "log-dir", "", "Log directory name to look for (overrides config)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Parse worker count (0 = auto)")
}

var rootCmd = &cobra.Command{
	Use:           "logdex",
	Short:         "Logdex: index structured log trees into a queryable catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadSetup resolves config plus flag overrides into service options and a
// logger.
func loadSetup() (*config.Config, index.Options, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, index.Options{}, zerolog.Nop(), err
	}
	if logDirName != "" {
		cfg.Index.LogDirName = logDirName
	}
	if workers > 0 {
		cfg.Index.Workers = workers
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Log.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	} else {
		log = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}

	opts := index.Options{
		Workers:      cfg.Index.Workers,
		PollInterval: cfg.Watch.Interval(),
		FlattenDepth: cfg.Index.FlattenDepth,
		StoreDir:     cfg.Index.StoreDir,
		LogDirName:   cfg.Index.LogDirName,
		Extensions:   cfg.Index.Extensions,
		Logger:       &log,
	}
	return cfg, opts, log, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
