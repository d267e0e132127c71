// Package runner repeats a dataset evaluation across epochs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/signalnine/calcbench/internal/dataset"
	"github.com/signalnine/calcbench/internal/logging"
	"github.com/signalnine/calcbench/internal/result"
)

// ProgressEvery is how many rows pass between progress lines within an epoch.
const ProgressEvery = 50

var ErrNoEpochs = errors.New("epochs must be at least 1")

// Measurer produces one trial record for a row; it never fails.
type Measurer interface {
	Measure(ctx context.Context, row dataset.Row, epoch int) result.TrialRecord
}

type Opts struct {
	Rows     []dataset.Row
	Epochs   int
	Measurer Measurer
	// Out receives progress lines; nil discards them.
	Out    io.Writer
	Logger *slog.Logger
}

// RunEpochs evaluates every row once per epoch, in order. Row failures are
// recorded in the trials; only ctx cancellation ends the run early, in which
// case the trials gathered so far are returned with ctx's error.
func RunEpochs(ctx context.Context, opts Opts) ([]result.TrialRecord, error) {
	if opts.Epochs < 1 {
		return nil, ErrNoEpochs
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	total := len(opts.Rows)
	trials := make([]result.TrialRecord, 0, total*opts.Epochs)
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		fmt.Fprintf(out, "Epoch %d/%d (%d equations)\n", epoch, opts.Epochs, total)
		var correct int
		for i, row := range opts.Rows {
			if err := ctx.Err(); err != nil {
				logger.Info("run interrupted", "epoch", epoch, "row", i, "error", err)
				return trials, err
			}
			rec := opts.Measurer.Measure(ctx, row, epoch)
			if err := ctx.Err(); err != nil {
				// The row was cut short, so its record is dropped.
				logger.Info("run interrupted", "epoch", epoch, "row", i, "id", rec.ID, "error", err)
				return trials, err
			}
			trials = append(trials, rec)
			correct += rec.Correct
			logger.Debug("trial", "id", rec.ID, "epoch", epoch, "correct", rec.Correct,
				"latency_ms", rec.LatencyMS, "retries", rec.Retries, "status", rec.Status)

			if n := i + 1; n%ProgressEvery == 0 && n < total {
				fmt.Fprintf(out, "  %d/%d\n", n, total)
			}
		}
		fmt.Fprintf(out, "  epoch %d done: %d/%d correct\n", epoch, correct, total)
	}
	return trials, nil
}
