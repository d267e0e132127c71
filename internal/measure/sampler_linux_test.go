package measure_test

import (
	"os"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/calcbench/internal/measure"
)

// touch allocates n bytes and writes one byte per page so they become
// resident.
func touch(n int) []byte {
	b := make([]byte, n)
	page := os.Getpagesize()
	for i := 0; i < n; i += page {
		b[i] = 1
	}
	return b
}

func TestDefaultSamplerReportsCurrentResidentMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates several hundred MB")
	}
	const mb = 1 << 20
	s := measure.DefaultSampler()

	big := touch(256 * mb)
	high, err := s.Sample()
	require.NoError(t, err)
	runtime.KeepAlive(big)

	big = nil
	runtime.GC()
	debug.FreeOSMemory()
	low, err := s.Sample()
	require.NoError(t, err)
	assert.Less(t, low.RSSBytes, high.RSSBytes-128*mb, "freed memory lowers the sample")

	fresh := touch(96 * mb)
	grown, err := s.Sample()
	require.NoError(t, err)
	runtime.KeepAlive(fresh)

	assert.GreaterOrEqual(t, grown.RSSBytes, low.RSSBytes+64*mb, "growth below an earlier peak is still visible")
	assert.GreaterOrEqual(t, grown.CPUTime, low.CPUTime)
}
