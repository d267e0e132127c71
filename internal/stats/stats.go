// Package stats summarizes trial logs per equation.
package stats

import (
	"math"
	"sort"

	"github.com/signalnine/calcbench/internal/result"
)

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample standard deviation (n-1 denominator). Fewer than
// two values give 0.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// Percentile returns the p-th percentile (0-100) using linear interpolation
// between closest ranks. A single value is returned as is; no values give 0.
func Percentile(xs []float64, p float64) float64 {
	switch len(xs) {
	case 0:
		return 0
	case 1:
		return xs[0]
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Max returns the largest value, or 0 for no values.
func Max(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// Aggregate groups trials by equation ID and summarizes each group. Output,
// byte sizes and call count come from the group's earliest epoch. Results
// are sorted by ID.
func Aggregate(trials []result.TrialRecord) []result.AggregateRecord {
	groups := make(map[string][]result.TrialRecord)
	var ids []string
	for _, t := range trials {
		if _, ok := groups[t.ID]; !ok {
			ids = append(ids, t.ID)
		}
		groups[t.ID] = append(groups[t.ID], t)
	}
	sort.Strings(ids)

	out := make([]result.AggregateRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, summarize(groups[id]))
	}
	return out
}

func summarize(group []result.TrialRecord) result.AggregateRecord {
	first := group[0]
	correct := make([]float64, len(group))
	latency := make([]float64, len(group))
	cpu := make([]float64, len(group))
	ram := make([]float64, len(group))
	for i, t := range group {
		if t.Epoch < first.Epoch {
			first = t
		}
		correct[i] = float64(t.Correct)
		latency[i] = t.LatencyMS
		cpu[i] = t.CPUTimeMS
		ram[i] = t.RAMPeakMB
	}

	return result.AggregateRecord{
		ID:            first.ID,
		Equation:      first.Equation,
		Answer:        first.Answer,
		Type:          first.Type,
		Complexity:    first.Complexity,
		Method:        first.Method,
		Output:        first.Output,
		Epochs:        len(group),
		SuccessRate:   Mean(correct),
		LatencyMeanMS: Mean(latency),
		LatencyStdMS:  StdDev(latency),
		LatencyP95MS:  Percentile(latency, 95),
		LatencyP99MS:  Percentile(latency, 99),
		CPUTimeMeanMS: Mean(cpu),
		CPUTimeStdMS:  StdDev(cpu),
		CPUTimePeakMS: Max(cpu),
		RAMPeakMaxMB:  Max(ram),
		RequestBytes:  first.RequestBytes,
		ResponseBytes: first.ResponseBytes,
		RemoteCalls:   first.RemoteCalls,
	}
}

// Overall is the run-level view of a summary.
type Overall struct {
	Equations     int
	Accuracy      float64
	MeanLatencyMS float64
}

// Summarize returns the mean success rate and mean latency across equations.
func Summarize(summary []result.AggregateRecord) Overall {
	rates := make([]float64, len(summary))
	latency := make([]float64, len(summary))
	for i, s := range summary {
		rates[i] = s.SuccessRate
		latency[i] = s.LatencyMeanMS
	}
	return Overall{Equations: len(summary), Accuracy: Mean(rates), MeanLatencyMS: Mean(latency)}
}
