package result

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	TrialsCSV   = "trials.csv"
	TrialsJSON  = "trials.json"
	SummaryCSV  = "summary.csv"
	SummaryJSON = "summary.json"
	RunJSON     = "run.json"
	MetricsFile = "metrics.prom"
)

var trialColumns = []string{
	"ID", "Epoch", "Equation", "Answer", "Type", "Complexity", "Method_Used",
	"Output_Answer", "IsCorrect", "Latency_ms", "CPU_Time_ms", "RAM_Peak_MB",
	"Request_Size_Bytes", "Response_Size_Bytes", "Remote_Calls_Count",
}

var summaryColumns = []string{
	"ID", "Equation", "Answer", "Type", "Complexity", "Method_Used", "Output_Answer",
	"IsCorrect", "Latency_Mean_ms", "Latency_Std_ms", "Latency_P95_ms", "Latency_P99_ms",
	"CPU_Time_Mean_ms", "CPU_Time_Std_ms", "CPU_Time_Peak_ms", "RAM_Peak_Max_MB",
	"Request_Size_Bytes", "Response_Size_Bytes", "Remote_Calls_Count",
}

// CreateRunDir makes a fresh directory under baseDir/runs and points
// baseDir/latest at it. Names sort by start time; the random suffix keeps
// runs started in the same millisecond apart.
func CreateRunDir(baseDir string) (string, error) {
	runsDir, err := filepath.Abs(filepath.Join(baseDir, "runs"))
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05.000")
	runDir := filepath.Join(runsDir, stamp+"-"+uuid.NewString()[:8])
	if err := os.Mkdir(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	if err := os.Remove(latest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("replacing latest symlink: %w", err)
	}
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// SortTrials orders trials by ID, then epoch.
func SortTrials(trials []TrialRecord) {
	sort.SliceStable(trials, func(i, j int) bool {
		if trials[i].ID != trials[j].ID {
			return trials[i].ID < trials[j].ID
		}
		return trials[i].Epoch < trials[j].Epoch
	})
}

// WriteTrials stores the trial log as CSV and as its JSON mirror, sorted by
// ID then epoch. The caller's slice is not reordered.
func WriteTrials(runDir string, trials []TrialRecord) error {
	sorted := append([]TrialRecord(nil), trials...)
	SortTrials(sorted)
	if err := writeFile(filepath.Join(runDir, TrialsCSV), func(w io.Writer) error {
		return EncodeTrialsCSV(w, sorted)
	}); err != nil {
		return fmt.Errorf("writing %s: %w", TrialsCSV, err)
	}
	if err := writeJSON(filepath.Join(runDir, TrialsJSON), sorted); err != nil {
		return fmt.Errorf("writing %s: %w", TrialsJSON, err)
	}
	return nil
}

func WriteSummary(runDir string, summary []AggregateRecord) error {
	if err := writeFile(filepath.Join(runDir, SummaryCSV), func(w io.Writer) error {
		return EncodeSummaryCSV(w, summary)
	}); err != nil {
		return fmt.Errorf("writing %s: %w", SummaryCSV, err)
	}
	if err := writeJSON(filepath.Join(runDir, SummaryJSON), summary); err != nil {
		return fmt.Errorf("writing %s: %w", SummaryJSON, err)
	}
	return nil
}

func WriteRunMeta(runDir string, meta *RunMeta) error {
	return writeJSON(filepath.Join(runDir, RunJSON), meta)
}

func ReadTrials(runDir string) ([]TrialRecord, error) {
	var trials []TrialRecord
	if err := readJSON(filepath.Join(runDir, TrialsJSON), &trials); err != nil {
		return nil, err
	}
	return trials, nil
}

func ReadSummary(runDir string) ([]AggregateRecord, error) {
	var summary []AggregateRecord
	if err := readJSON(filepath.Join(runDir, SummaryJSON), &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func ReadRunMeta(runDir string) (*RunMeta, error) {
	var meta RunMeta
	if err := readJSON(filepath.Join(runDir, RunJSON), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func EncodeTrialsCSV(w io.Writer, trials []TrialRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(trialColumns); err != nil {
		return err
	}
	for _, t := range trials {
		row := []string{
			t.ID, strconv.Itoa(t.Epoch), t.Equation, formatFloat(t.Answer), t.Type,
			formatFloat(t.Complexity), t.Method, formatOptional(t.Output), strconv.Itoa(t.Correct),
			formatFloat(t.LatencyMS), formatFloat(t.CPUTimeMS), formatFloat(t.RAMPeakMB),
			strconv.Itoa(t.RequestBytes), strconv.Itoa(t.ResponseBytes), strconv.Itoa(t.RemoteCalls),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func EncodeSummaryCSV(w io.Writer, summary []AggregateRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryColumns); err != nil {
		return err
	}
	for _, s := range summary {
		row := []string{
			s.ID, s.Equation, formatFloat(s.Answer), s.Type, formatFloat(s.Complexity), s.Method,
			formatOptional(s.Output), formatFloat(s.SuccessRate),
			formatFloat(s.LatencyMeanMS), formatFloat(s.LatencyStdMS), formatFloat(s.LatencyP95MS), formatFloat(s.LatencyP99MS),
			formatFloat(s.CPUTimeMeanMS), formatFloat(s.CPUTimeStdMS), formatFloat(s.CPUTimePeakMS), formatFloat(s.RAMPeakMaxMB),
			strconv.Itoa(s.RequestBytes), strconv.Itoa(s.ResponseBytes), strconv.Itoa(s.RemoteCalls),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatOptional renders an absent value as an empty cell.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
