//go:build unix

package measure

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// RusageSampler reads getrusage(2) for the current process. RSSBytes is the
// peak resident set size, so deltas between samples never go negative and
// memory returned to the OS is invisible. It is the default only where
// /proc is unavailable.
type RusageSampler struct{}

func (RusageSampler) Sample() (Sample, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return Sample{}, fmt.Errorf("getrusage: %w", err)
	}
	cpu := time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
	rss := uint64(ru.Maxrss)
	if runtime.GOOS != "darwin" && runtime.GOOS != "ios" {
		// Linux and the BSDs report kilobytes.
		rss *= 1024
	}
	return Sample{CPUTime: cpu, RSSBytes: rss}, nil
}
