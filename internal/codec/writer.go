package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"image"
	"os"
	"sync/atomic"

	"github.com/disintegration/imaging"
)

// Writer owns a single recording's file handle and codec tag. Frame-write
// errors are counted; resource release is guaranteed on every exit path
// via Close.
type Writer interface {
	WriteFrame(frame []byte) error
	Tag() string
	Extension() string
	FrameErrors() int64
	Close() error
}

// frameWriter is the disintegration/imaging-backed Writer: each frame is
// JPEG-encoded and appended to the file behind a 4-byte big-endian length
// prefix, so the container can be scanned back into discrete frames
// without a full video-codec dependency.
type frameWriter struct {
	file        *os.File
	buf         *bufio.Writer
	tag         string
	ext         string
	width       int
	height      int
	frameErrors int64
}

func imagingOpener(path string, c Candidate, width, height int, fps float64) (Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &frameWriter{
		file:   f,
		buf:    bufio.NewWriter(f),
		tag:    c.Tag,
		ext:    c.Extension,
		width:  width,
		height: height,
	}, nil
}

// OpenWriter opens a writer for the given candidate at path; used by the
// recording manager once a working candidate has been selected by Probe.
func OpenWriter(path string, c Candidate, width, height int, fps float64) (Writer, error) {
	return imagingOpener(path, c, width, height, fps)
}

// EncodeJPEG converts a raw packed-RGB frame (as produced by the stream
// manager's latest-frame slot) into a JPEG at the given quality; shared by
// the recording writer and the HTTP live-view/snapshot/thumbnail paths so
// the RGB-to-JPEG conversion lives in one place.
func EncodeJPEG(frame []byte, width, height, quality int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if len(frame) >= width*height*3 {
		for i := 0; i < width*height; i++ {
			img.Pix[i*4] = frame[i*3]
			img.Pix[i*4+1] = frame[i*3+1]
			img.Pix[i*4+2] = frame[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *frameWriter) WriteFrame(frame []byte) error {
	if len(frame) == 0 {
		atomic.AddInt64(&w.frameErrors, 1)
		return nil
	}

	jpegBytes, err := EncodeJPEG(frame, w.width, w.height, 85)
	if err != nil {
		atomic.AddInt64(&w.frameErrors, 1)
		return err
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(jpegBytes)))
	if _, err := w.buf.Write(lenPrefix[:]); err != nil {
		atomic.AddInt64(&w.frameErrors, 1)
		return err
	}
	if _, err := w.buf.Write(jpegBytes); err != nil {
		atomic.AddInt64(&w.frameErrors, 1)
		return err
	}
	return nil
}

func (w *frameWriter) Tag() string { return w.tag }

func (w *frameWriter) Extension() string { return w.ext }

func (w *frameWriter) FrameErrors() int64 { return atomic.LoadInt64(&w.frameErrors) }

func (w *frameWriter) Close() error {
	if w.buf != nil {
		w.buf.Flush()
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
