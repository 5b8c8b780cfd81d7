package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/config"
	"github.com/LeJamon/goshardsim/internal/core/sim"
	"github.com/LeJamon/goshardsim/internal/stats"
)

var (
	// Run flags
	runSeed   int64
	runEpochs int
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation",
	Long: `Run one seeded simulation with the configured network, stake and
protocol parameters. Statistics go to the sinks of the output section and a
summary is printed when the run completes.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "override the configured seed")
	runCmd.Flags().IntVar(&runEpochs, "epochs", 0, "override the configured number of epochs")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "override the output directory")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = runSeed
	}
	if runEpochs > 0 {
		cfg.Protocol.Epochs = runEpochs
	}
	if runOutput != "" {
		cfg.Output.Dir = runOutput
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	sum, err := simulate(ctx, cfg, log)
	if err != nil {
		return err
	}
	if !quiet {
		printSummary(cmd.OutOrStdout(), cfg, sum, time.Since(start))
	}
	return nil
}

// simulate runs one simulation and returns the summary of its finalized
// blocks. The configured sinks are always closed.
func simulate(ctx context.Context, cfg *config.Config, log *zap.Logger) (sum stats.Summary, err error) {
	if cfg.Output.Dir != "" {
		if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
			return sum, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	sinks, err := stats.Open(ctx, cfg)
	if err != nil {
		return sum, err
	}
	defer func() {
		err = errors.Join(err, sinks.Close())
	}()
	mem := stats.NewMemorySink()
	sinks.Add(mem)

	s, err := sim.New(cfg, sim.WithLogger(log), sim.WithSink(sinks))
	if err != nil {
		return sum, err
	}
	if err := s.Run(ctx); err != nil {
		return sum, err
	}
	return mem.Summarize(), nil
}

func printSummary(w io.Writer, cfg *config.Config, sum stats.Summary, elapsed time.Duration) {
	fmt.Fprintf(w, "Simulation completed in %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  - Seed:         %d\n", cfg.Seed)
	fmt.Fprintf(w, "  - Nodes:        %d\n", cfg.Network.Size)
	fmt.Fprintf(w, "  - Shards:       %d\n", cfg.Protocol.Shards)
	fmt.Fprintf(w, "  - Epochs:       %d x %d slots\n", cfg.Protocol.Epochs, cfg.Protocol.EpochSlots)
	fmt.Fprintf(w, "  - Blocks:       %d\n", sum.Blocks)
	fmt.Fprintf(w, "  - Transactions: %d\n", sum.Transactions)
	for shard := 0; shard < cfg.Protocol.Shards; shard++ {
		fmt.Fprintf(w, "  - Shard %d:      %d blocks\n", shard, sum.BlocksShard[shard])
	}
}
