package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeCachesByResolutionAndFPS(t *testing.T) {
	p := NewProber(t.TempDir())

	first := p.Probe(320, 240, 25)
	require.NotEmpty(t, first)

	// Poison the opener so a cache miss would return nothing; a cache hit
	// must still return the original result.
	p.opener = func(path string, c Candidate, w, h int, fps float64) (Writer, error) {
		return nil, errAlwaysFail{}
	}
	second := p.Probe(320, 240, 25)
	require.Equal(t, first, second)

	third := p.Probe(640, 480, 25)
	require.Equal(t, fallbackList, third)
}

func TestInvalidateCacheForcesReprobe(t *testing.T) {
	p := NewProber(t.TempDir())
	p.Probe(320, 240, 25)
	p.InvalidateCache()
	require.Empty(t, p.cache)
}

type errAlwaysFail struct{}

func (errAlwaysFail) Error() string { return "always fails" }
