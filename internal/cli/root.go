package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/config"
	"github.com/LeJamon/goshardsim/internal/logging"
)

var (
	// Global flags
	configFile string
	debug      bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shardsim",
	Short: "shardsim - sharded FBFT network simulator",
	Long: `shardsim is a deterministic discrete event simulator of a sharded
proof of stake network running Harmony FBFT. It simulates the stake and token
distribution, the leader selection of every shard, the consensus messages
and the randomness beacon, and records per slot statistics.`,
	Version:      "0.1.0-dev",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (empty uses built-in defaults)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")
}

// loadConfig reads the configuration file, the environment and the global
// flags, in increasing priority.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	switch {
	case quiet:
		cfg.Log.Level = "error"
	case debug:
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
