package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalnine/calcbench/internal/config"
	"github.com/signalnine/calcbench/internal/dataset"
	"github.com/signalnine/calcbench/internal/dispatch"
	"github.com/signalnine/calcbench/internal/docker"
	"github.com/signalnine/calcbench/internal/reduce"
	"github.com/signalnine/calcbench/internal/result"
	"github.com/signalnine/calcbench/internal/retry"
	"github.com/signalnine/calcbench/internal/soap"
	"github.com/signalnine/calcbench/internal/stats"
)

// newReducer wires client, dispatcher and retry controller for endpoint.
// reg may be nil, in which case dispatches are not counted.
func newReducer(cfg *config.Config, endpoint string, reg prometheus.Registerer, logger *slog.Logger) (*reduce.Reducer, error) {
	client := soap.New(soap.Options{
		Endpoint:  endpoint,
		Timeout:   cfg.Service.Timeout,
		RateLimit: cfg.Service.RateLimit,
		Logger:    logger,
	})
	var metrics *dispatch.Metrics
	if reg != nil {
		metrics = dispatch.NewMetrics(reg)
	}
	ctrl, err := retry.New(cfg.Retry.Policy(), retry.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}
	return reduce.New(dispatch.New(client, metrics, logger), ctrl, logger), nil
}

// resolveEndpoint starts the configured calculator container, if any. The
// returned stop func is always safe to call.
func resolveEndpoint(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, func(), error) {
	c := cfg.Service.Container
	if c.Image == "" {
		return cfg.Service.Endpoint, func() {}, nil
	}
	svc, err := docker.StartService(ctx, docker.ServiceOpts{
		Image:  c.Image,
		Port:   c.Port,
		Path:   c.Path,
		Logger: logger,
	})
	if err != nil {
		return "", func() {}, fmt.Errorf("starting calculator container: %w", err)
	}
	return svc.Endpoint(), svc.Stop, nil
}

// loadRows reads the configured dataset, applying --dataset, and filters it.
func loadRows(cfg *config.Config, typ string, limit int) ([]dataset.Row, error) {
	if flagDataset != "" {
		cfg.Dataset = flagDataset
	}
	if cfg.Dataset == "" {
		return nil, fmt.Errorf("no dataset: set dataset in %s or pass --dataset", cfgFile)
	}
	rows, err := dataset.Load(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	rows = dataset.Filter(rows, typ, limit)
	if len(rows) == 0 {
		return nil, fmt.Errorf("no equations in %s match type %q", cfg.Dataset, typ)
	}
	return rows, nil
}

// saveRun aggregates trials and writes the trial log, summary and manifest
// to runDir. Metrics are written when gatherer is non-nil.
func saveRun(runDir string, trials []result.TrialRecord, meta *result.RunMeta, gatherer prometheus.Gatherer) ([]result.AggregateRecord, error) {
	summary := stats.Aggregate(trials)
	overall := stats.Summarize(summary)
	meta.Trials = len(trials)
	meta.Accuracy = overall.Accuracy
	meta.MeanLatency = overall.MeanLatencyMS

	if err := result.WriteTrials(runDir, trials); err != nil {
		return nil, fmt.Errorf("writing trials: %w", err)
	}
	if err := result.WriteSummary(runDir, summary); err != nil {
		return nil, fmt.Errorf("writing summary: %w", err)
	}
	if err := result.WriteRunMeta(runDir, meta); err != nil {
		return nil, fmt.Errorf("writing run manifest: %w", err)
	}
	if gatherer != nil {
		if err := prometheus.WriteToTextfile(filepath.Join(runDir, result.MetricsFile), gatherer); err != nil {
			return nil, fmt.Errorf("writing metrics: %w", err)
		}
	}
	return summary, nil
}

// resolveRunDir returns args[0] or the latest run under the results dir,
// with symlinks resolved.
func resolveRunDir(cfg *config.Config, args []string) (string, error) {
	runDir := filepath.Join(cfg.Results.Dir, "latest")
	if len(args) > 0 {
		runDir = args[0]
	}
	resolved, err := filepath.EvalSymlinks(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	return resolved, nil
}
