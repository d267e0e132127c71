//go:build !unix

package measure

// DefaultSampler reports zero usage where getrusage is unavailable.
func DefaultSampler() ResourceSampler {
	return SamplerFunc(func() (Sample, error) { return Sample{}, nil })
}
