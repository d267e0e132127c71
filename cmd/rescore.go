package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/signalnine/calcbench/internal/measure"
	"github.com/signalnine/calcbench/internal/result"
)

var flagTolerance float64

func newRescoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rescore [run-dir]",
		Short: "Re-score a stored run with another tolerance",
		Long:  "Recompute correctness of every trial in a run directory against a new tolerance and rewrite the trial log, summary and run manifest. No remote calls are made.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tol := cfg.Tolerance
			if cmd.Flags().Changed("tolerance") {
				tol = flagTolerance
			}
			if tol <= 0 {
				return fmt.Errorf("tolerance must be positive, got %g", tol)
			}
			runDir, err := resolveRunDir(cfg, args)
			if err != nil {
				return err
			}

			trials, err := result.ReadTrials(runDir)
			if err != nil {
				return fmt.Errorf("reading trials: %w", err)
			}
			meta, err := result.ReadRunMeta(runDir)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				meta = &result.RunMeta{}
			case err != nil:
				return fmt.Errorf("reading run manifest: %w", err)
			}

			oldAccuracy, oldTol := meta.Accuracy, meta.Tolerance
			rescored := rescoreTrials(trials, tol)
			meta.RescoredFrom = oldTol
			meta.Tolerance = tol
			if _, err := saveRun(runDir, rescored, meta, nil); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Rescored %d trials in %s\n", len(rescored), runDir)
			fmt.Fprintf(cmd.OutOrStdout(), "  tolerance: %g → %g\n", oldTol, tol)
			fmt.Fprintf(cmd.OutOrStdout(), "  accuracy: %.1f%% → %.1f%%\n", oldAccuracy*100, meta.Accuracy*100)
			return nil
		},
	}
	cmd.Flags().Float64Var(&flagTolerance, "tolerance", 0, "new correctness tolerance (default: the config's)")
	return cmd
}

// rescoreTrials returns a copy of trials with Correct recomputed at tol.
func rescoreTrials(trials []result.TrialRecord, tol float64) []result.TrialRecord {
	out := make([]result.TrialRecord, len(trials))
	for i, t := range trials {
		t.Correct = 0
		if measure.IsCorrect(t.Output, t.Answer, tol) {
			t.Correct = 1
		}
		out[i] = t
	}
	return out
}
