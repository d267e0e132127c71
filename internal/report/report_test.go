package report_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/calcbench/internal/report"
	"github.com/signalnine/calcbench/internal/result"
)

var summary = []result.AggregateRecord{
	{ID: "a", Type: "Addition", SuccessRate: 1, LatencyMeanMS: 100, RemoteCalls: 1},
	{ID: "b", Type: "Addition", SuccessRate: 0.5, LatencyMeanMS: 200, RemoteCalls: 2},
	{ID: "c", Type: "Division", SuccessRate: 0, LatencyMeanMS: 600, RemoteCalls: 1},
	{ID: "d", SuccessRate: 1, LatencyMeanMS: 100},
}

func writeRun(t *testing.T, meta *result.RunMeta) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, result.WriteSummary(dir, summary))
	if meta != nil {
		require.NoError(t, result.WriteRunMeta(dir, meta))
	}
	return dir
}

func TestBuild(t *testing.T) {
	rep := report.Build(summary, nil)
	assert.Equal(t, 4, rep.Equations)
	assert.Equal(t, 0.625, rep.Accuracy)
	assert.Equal(t, 250.0, rep.MeanLatencyMS)

	require.Len(t, rep.ByType, 3)
	assert.Equal(t, "(none)", rep.ByType[0].Type)
	add := rep.ByType[1]
	assert.Equal(t, "Addition", add.Type)
	assert.Equal(t, 2, add.Equations)
	assert.Equal(t, 0.75, add.Accuracy)
	assert.Equal(t, 150.0, add.MeanLatencyMS)
	assert.Equal(t, 1.5, add.MeanRemoteCalls)
	assert.Equal(t, "Division", rep.ByType[2].Type)
}

func TestGenerateTable(t *testing.T) {
	dir := writeRun(t, &result.RunMeta{RunID: "r-1", Dataset: "svamp.csv", Epochs: 15, Method: "SOAP_Calculator", Tolerance: 1})

	var buf bytes.Buffer
	require.NoError(t, report.Generate(dir, "table", &buf))
	out := buf.String()
	assert.Contains(t, out, "Run r-1: svamp.csv, 15 epochs")
	assert.Contains(t, out, "Accuracy: 62.5%")
	assert.Contains(t, out, "Addition")
	assert.Contains(t, out, "Division")
}

func TestGenerateMarkdownWithoutManifest(t *testing.T) {
	dir := writeRun(t, nil)

	var buf bytes.Buffer
	require.NoError(t, report.Generate(dir, "markdown", &buf))
	assert.Contains(t, buf.String(), "| Addition | 2 | 75.0% | 150.0 | 1.50 |")
	assert.NotContains(t, buf.String(), "Run ")
}

func TestGenerateJSON(t *testing.T) {
	dir := writeRun(t, &result.RunMeta{RunID: "r-2"})

	var buf bytes.Buffer
	require.NoError(t, report.Generate(dir, "json", &buf))
	var rep report.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	require.NotNil(t, rep.Run)
	assert.Equal(t, "r-2", rep.Run.RunID)
	assert.Len(t, rep.ByType, 3)
}

func TestGenerateMissingSummary(t *testing.T) {
	err := report.Generate(t.TempDir(), "table", &bytes.Buffer{})
	assert.ErrorContains(t, err, "reading summary")
}
