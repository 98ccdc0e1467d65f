package stream

import (
	"context"
	"testing"
	"time"

	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	frames chan []byte
}

func (f *fakeSession) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case fr := <-f.frames:
		return fr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSession) Close() error { return nil }

type fakeConnector struct {
	reachable bool
}

func (f *fakeConnector) Probe(ctx context.Context, rtspURL string) ([]byte, int, int, error) {
	if !f.reachable {
		return nil, 0, 0, nil
	}
	return []byte{1, 2, 3}, 320, 240, nil
}

func (f *fakeConnector) Open(ctx context.Context, rtspURL string) (Session, error) {
	sess := &fakeSession{frames: make(chan []byte, 10)}
	for i := 0; i < 5; i++ {
		sess.frames <- []byte{1, 2, 3}
	}
	return sess, nil
}

func newTestManager(reachable bool) (*Manager, *store.Memory) {
	cfg := DefaultConfig()
	cfg.ProbeAttempts = 1
	cfg.TargetFPS = 1000 // fast pacing for tests
	st := store.NewMemory()
	mgr := NewManager(cfg, &fakeConnector{reachable: reachable}, st, clock.New(), logging.NewLogger("test"))
	return mgr, st
}

func TestStartStreamUnreachable(t *testing.T) {
	mgr, st := newTestManager(false)
	ctx := context.Background()

	cam := &model.Camera{ID: "cam-1", RTSPURL: "rtsp://example/stream"}
	require.NoError(t, st.CreateCamera(ctx, cam))

	err := mgr.StartStream(ctx, cam, model.QualityMain)
	require.Error(t, err)
	require.False(t, mgr.IsActive("cam-1", model.QualityMain))
}

func TestStartStopStreamIdempotent(t *testing.T) {
	mgr, st := newTestManager(true)
	ctx := context.Background()

	cam := &model.Camera{ID: "cam-1", RTSPURL: "rtsp://example/stream"}
	require.NoError(t, st.CreateCamera(ctx, cam))

	require.NoError(t, mgr.StartStream(ctx, cam, model.QualityMain))
	require.True(t, mgr.IsActive("cam-1", model.QualityMain))

	time.Sleep(20 * time.Millisecond)
	_, ok := mgr.GetFrame("cam-1", model.QualityMain)
	require.True(t, ok)

	require.NoError(t, mgr.StopStream(ctx, "cam-1", model.QualityMain))
	require.False(t, mgr.IsActive("cam-1", model.QualityMain))

	// second stop is a no-op, not an error
	require.NoError(t, mgr.StopStream(ctx, "cam-1", model.QualityMain))
}

func TestViewerZeroStopsStream(t *testing.T) {
	mgr, st := newTestManager(true)
	ctx := context.Background()

	cam := &model.Camera{ID: "cam-1", RTSPURL: "rtsp://example/stream"}
	require.NoError(t, st.CreateCamera(ctx, cam))
	require.NoError(t, mgr.StartStream(ctx, cam, model.QualityMain))

	mgr.AddViewer("cam-1", model.QualityMain)
	mgr.RemoveViewer(ctx, "cam-1", model.QualityMain)

	require.False(t, mgr.IsActive("cam-1", model.QualityMain))
}
