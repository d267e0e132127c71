package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalnine/calcbench/internal/measure"
	"github.com/signalnine/calcbench/internal/report"
	"github.com/signalnine/calcbench/internal/result"
	"github.com/signalnine/calcbench/internal/runner"
)

var (
	flagEpochs  int
	flagDataset string
	flagType    string
	flagLimit   int
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a benchmark run",
		RunE:  runBenchmark,
	}
	cmd.Flags().IntVar(&flagEpochs, "epochs", 0, "override epoch count")
	cmd.Flags().StringVar(&flagDataset, "dataset", "", "override dataset CSV path")
	cmd.Flags().StringVar(&flagType, "type", "", "only equations of this type")
	cmd.Flags().IntVar(&flagLimit, "limit", 0, "at most this many equations (0 = all)")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if flagEpochs > 0 {
		cfg.Epochs = flagEpochs
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	rows, err := loadRows(cfg, flagType, flagLimit)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoint, stopService, err := resolveEndpoint(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stopService()

	reg := prometheus.NewRegistry()
	reducer, err := newReducer(cfg, endpoint, reg, logger)
	if err != nil {
		return err
	}
	collector := measure.New(reducer, measure.Config{
		Method:    cfg.Method,
		Tolerance: cfg.Tolerance,
		Logger:    logger,
	})

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run directory: %s\n", runDir)

	meta := &result.RunMeta{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
		Dataset:    cfg.Dataset,
		Rows:       len(rows),
		Epochs:     cfg.Epochs,
		Method:     cfg.Method,
		Endpoint:   endpoint,
		Tolerance:  cfg.Tolerance,
		MaxRetries: cfg.Retry.MaxRetries,
	}
	logger.Info("run started", "run_id", meta.RunID, "rows", len(rows), "epochs", cfg.Epochs, "endpoint", endpoint)

	trials, runErr := runner.RunEpochs(ctx, runner.Opts{
		Rows:     rows,
		Epochs:   cfg.Epochs,
		Measurer: collector,
		Out:      out,
		Logger:   logger,
	})
	if len(trials) == 0 {
		return runErr
	}
	meta.FinishedAt = time.Now().UTC().Format(time.RFC3339)

	if _, err := saveRun(runDir, trials, meta, reg); err != nil {
		return err
	}
	logger.Info("run finished", "run_id", meta.RunID, "trials", meta.Trials, "accuracy", meta.Accuracy)

	fmt.Fprintln(out, "\n--- Results ---")
	if err := report.Generate(runDir, "table", out); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("run interrupted after %d trials: %w", len(trials), runErr)
	}
	return nil
}
