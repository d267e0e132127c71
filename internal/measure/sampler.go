package measure

import "time"

// Sample is a snapshot of process resource usage.
type Sample struct {
	// CPUTime is cumulative user plus system time.
	CPUTime time.Duration
	// RSSBytes is the resident set size. The default Linux sampler reports
	// the current value; getrusage reports the peak.
	RSSBytes uint64
}

// ResourceSampler reads process resource usage.
type ResourceSampler interface {
	Sample() (Sample, error)
}

// SamplerFunc adapts a function to ResourceSampler.
type SamplerFunc func() (Sample, error)

func (f SamplerFunc) Sample() (Sample, error) { return f() }
