package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AlexM1010/FollowWeb-sub000/internal/config"
	"github.com/AlexM1010/FollowWeb-sub000/internal/coord"
)

var (
	cfgPath       string
	checkpointDir string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "followweb",
	Short: "Incremental catalog similarity-graph crawler",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "followweb.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&checkpointDir, "checkpoint-dir", "", "Override checkpoint directory")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Debug logging")
}

// LoadConfig reads the config file and applies overrides.
// Checkpoint dir priority: env > flag > config file.
func LoadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	if envDir := os.Getenv("FOLLOWWEB_CHECKPOINT"); envDir != "" {
		cfg.CheckpointDir = envDir
	} else if checkpointDir != "" {
		cfg.CheckpointDir = checkpointDir
	}
	return cfg, nil
}

// NewLogger builds the run logger. Jobs run under schedulers, so output is
// plain text with timestamps rather than colors.
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// NewCoordinator wires the cross-run gate from config. The lock file lives
// next to the checkpoint artifacts.
func NewCoordinator(cfg config.Config, log *logrus.Logger) (*coord.Coordinator, error) {
	if err := os.MkdirAll(cfg.CheckpointDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint dir: %w", err)
	}
	return &coord.Coordinator{
		Poller:    &coord.FileStatusPoller{Path: cfg.Coord.StatusFile},
		Lock:      &coord.FileLock{Path: filepath.Join(cfg.CheckpointDir, "crawl.lock"), Stale: cfg.Coord.LockStaleness.Std()},
		MaxWait:   cfg.Coord.MaxWait.Std(),
		BaseDelay: cfg.Coord.BaseDelay.Std(),
		Log:       log,
	}, nil
}
