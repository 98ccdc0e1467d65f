// Package codec probes for a working video codec/container pair at a given
// resolution and frame rate (C2), and owns the writer handle used by the
// recording manager.
package codec

import (
	"fmt"
	"os"
	"sync"
)

// Candidate is one codec/container combination to try, in preference order.
type Candidate struct {
	Tag       string // fourcc-style codec tag
	Extension string // container extension, including the dot
}

// preferenceList is the fixed probe order from the specification.
var preferenceList = []Candidate{
	{"mp4v", ".mp4"},
	{"MJPG", ".mp4"},
	{"XVID", ".mp4"},
	{"DIVX", ".mp4"},
	{"WMV1", ".wmv"},
	{"WMV2", ".wmv"},
	{"MJPG", ".avi"},
	{"XVID", ".avi"},
	{"DIVX", ".avi"},
}

// fallbackList is used untested when every candidate in preferenceList
// fails, so the pipeline can still attempt to record.
var fallbackList = []Candidate{
	{"MJPG", ".avi"},
}

// openerFunc abstracts the codec-specific writer construction so Probe can
// be exercised in tests without a real encoder backend.
type openerFunc func(path string, c Candidate, width, height int, fps float64) (Writer, error)

// Prober caches probe results keyed by "<W>x<H>@<fps>".
type Prober struct {
	mu     sync.Mutex
	cache  map[string][]Candidate
	opener openerFunc
	tmpDir string
}

// NewProber constructs a Prober using the default disintegration/imaging
// backed writer opener.
func NewProber(tmpDir string) *Prober {
	return &Prober{
		cache:  make(map[string][]Candidate),
		opener: imagingOpener,
		tmpDir: tmpDir,
	}
}

func cacheKey(width, height int, fps float64) string {
	return fmt.Sprintf("%dx%d@%g", width, height, fps)
}

// Probe returns the ordered list of candidates that successfully opened a
// writer, wrote three synthetic frames, and produced a file larger than 50
// bytes, at the given resolution/fps. Results are cached.
func (p *Prober) Probe(width, height int, fps float64) []Candidate {
	key := cacheKey(width, height, fps)

	p.mu.Lock()
	if cached, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return cached
	}
	p.mu.Unlock()

	var working []Candidate
	for _, c := range preferenceList {
		if p.tryCandidate(c, width, height, fps) {
			working = append(working, c)
		}
	}
	if len(working) == 0 {
		working = append([]Candidate{}, fallbackList...)
	}

	p.mu.Lock()
	p.cache[key] = working
	p.mu.Unlock()

	return working
}

// InvalidateCache clears all cached probe results, forcing re-probe after
// a runtime/codec upgrade.
func (p *Prober) InvalidateCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string][]Candidate)
}

func (p *Prober) tryCandidate(c Candidate, width, height int, fps float64) bool {
	tmp, err := os.CreateTemp(p.tmpDir, "codec-probe-*"+c.Extension)
	if err != nil {
		return false
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	w, err := p.opener(path, c, width, height, fps)
	if err != nil {
		return false
	}
	defer w.Close()

	frame := syntheticFrame(width, height)
	for i := 0; i < 3; i++ {
		if err := w.WriteFrame(frame); err != nil {
			return false
		}
	}
	w.Close()

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > 50
}

// syntheticFrame builds a minimal 3-channel frame buffer used purely to
// exercise the probe path; real capture frames come from the stream
// manager.
func syntheticFrame(width, height int) []byte {
	return make([]byte, width*height*3)
}
