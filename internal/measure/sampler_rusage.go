//go:build unix && !linux

package measure

// DefaultSampler returns the sampler for this platform.
func DefaultSampler() ResourceSampler { return RusageSampler{} }
