package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/calcbench/internal/result"
	"github.com/signalnine/calcbench/internal/stats"
)

type TypeSummary struct {
	Type            string  `json:"type"`
	Equations       int     `json:"equations"`
	Accuracy        float64 `json:"accuracy"`
	MeanLatencyMS   float64 `json:"mean_latency_ms"`
	MeanRemoteCalls float64 `json:"mean_remote_calls"`
}

type Report struct {
	Run           *result.RunMeta `json:"run,omitempty"`
	Equations     int             `json:"equations"`
	Accuracy      float64         `json:"accuracy"`
	MeanLatencyMS float64         `json:"mean_latency_ms"`
	ByType        []TypeSummary   `json:"by_type"`
}

// Generate reads a run's summary and writes a report in format (table,
// markdown or json). run.json is optional.
func Generate(runDir, format string, w io.Writer) error {
	summary, err := result.ReadSummary(runDir)
	if err != nil {
		return fmt.Errorf("reading summary: %w", err)
	}
	meta, err := result.ReadRunMeta(runDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading run manifest: %w", err)
	}
	rep := Build(summary, meta)

	switch format {
	case "markdown":
		return writeMarkdown(rep, w)
	case "json":
		return writeJSON(rep, w)
	default:
		return writeTable(rep, w)
	}
}

// Build computes overall and per-type figures from a summary.
func Build(summary []result.AggregateRecord, meta *result.RunMeta) Report {
	overall := stats.Summarize(summary)
	return Report{
		Run:           meta,
		Equations:     overall.Equations,
		Accuracy:      overall.Accuracy,
		MeanLatencyMS: overall.MeanLatencyMS,
		ByType:        byType(summary),
	}
}

func byType(summary []result.AggregateRecord) []TypeSummary {
	groups := map[string][]result.AggregateRecord{}
	for _, s := range summary {
		typ := s.Type
		if typ == "" {
			typ = "(none)"
		}
		groups[typ] = append(groups[typ], s)
	}

	out := make([]TypeSummary, 0, len(groups))
	for typ, group := range groups {
		overall := stats.Summarize(group)
		calls := make([]float64, len(group))
		for i, s := range group {
			calls[i] = float64(s.RemoteCalls)
		}
		out = append(out, TypeSummary{
			Type:            typ,
			Equations:       overall.Equations,
			Accuracy:        overall.Accuracy,
			MeanLatencyMS:   overall.MeanLatencyMS,
			MeanRemoteCalls: stats.Mean(calls),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Type < out[j].Type
	})
	return out
}

func writeTable(rep Report, w io.Writer) error {
	if rep.Run != nil {
		fmt.Fprintf(w, "Run %s: %s, %d epochs, method %s, tolerance %g\n",
			rep.Run.RunID, rep.Run.Dataset, rep.Run.Epochs, rep.Run.Method, rep.Run.Tolerance)
	}
	fmt.Fprintf(w, "Equations: %d  Accuracy: %.1f%%  Mean latency: %.1f ms\n\n",
		rep.Equations, rep.Accuracy*100, rep.MeanLatencyMS)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tEQUATIONS\tACCURACY\tMEAN LATENCY\tMEAN CALLS")
	fmt.Fprintln(tw, strings.Repeat("-", 64))
	for _, s := range rep.ByType {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%.1f ms\t%.2f\n",
			s.Type, s.Equations, s.Accuracy*100, s.MeanLatencyMS, s.MeanRemoteCalls)
	}
	return tw.Flush()
}

func writeMarkdown(rep Report, w io.Writer) error {
	fmt.Fprintf(w, "**Equations:** %d | **Accuracy:** %.1f%% | **Mean latency:** %.1f ms\n\n",
		rep.Equations, rep.Accuracy*100, rep.MeanLatencyMS)
	fmt.Fprintln(w, "| Type | Equations | Accuracy | Mean Latency (ms) | Mean Calls |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, s := range rep.ByType {
		fmt.Fprintf(w, "| %s | %d | %.1f%% | %.1f | %.2f |\n",
			s.Type, s.Equations, s.Accuracy*100, s.MeanLatencyMS, s.MeanRemoteCalls)
	}
	return nil
}

func writeJSON(rep Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
