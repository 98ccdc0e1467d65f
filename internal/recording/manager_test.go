package recording

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/codec"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/store"
	"github.com/camerarecorder/cctv-service/internal/stream"
)

type fakeStreamSession struct{ frames chan []byte }

func (f *fakeStreamSession) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case fr := <-f.frames:
		return fr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
func (f *fakeStreamSession) Close() error { return nil }

type fakeConnector struct{}

func (fakeConnector) Probe(ctx context.Context, rtspURL string) ([]byte, int, int, error) {
	return make([]byte, 320*240*3), 320, 240, nil
}

func (fakeConnector) Open(ctx context.Context, rtspURL string) (stream.Session, error) {
	sess := &fakeStreamSession{frames: make(chan []byte, 100)}
	go func() {
		frame := make([]byte, 320*240*3)
		for i := 0; i < 200; i++ {
			sess.frames <- frame
		}
	}()
	return sess, nil
}

func newTestManager(t *testing.T) (*Manager, *store.Memory) {
	st := store.NewMemory()
	clk := clock.New()
	streamCfg := stream.DefaultConfig()
	streamCfg.ProbeAttempts = 1
	streamMgr := stream.NewManager(streamCfg, fakeConnector{}, st, clk, logging.NewLogger("test"))

	cfg := DefaultConfig()
	cfg.ConsecutiveFailureMax = 1000
	mgr := NewManager(cfg, t.TempDir(), st, streamMgr, codec.NewProber(t.TempDir()), objectstore.NewDisabled(), clk, logging.NewLogger("test"), nil)
	return mgr, st
}

func TestStartRecordingRejectsDoubleStart(t *testing.T) {
	mgr, st := newTestManager(t)
	ctx := context.Background()

	cam := &model.Camera{ID: "cam-1", Name: "Front", RTSPURL: "rtsp://example/stream"}
	require.NoError(t, st.CreateCamera(ctx, cam))

	_, err := mgr.StartRecording(ctx, cam, model.QualityMain, 0, "", "", false)
	require.NoError(t, err)
	require.True(t, mgr.IsRecording("cam-1"))

	_, err = mgr.StartRecording(ctx, cam, model.QualityMain, 0, "", "", false)
	require.Error(t, err)

	require.NoError(t, mgr.StopRecording(ctx, "cam-1"))
	require.False(t, mgr.IsRecording("cam-1"))
}

func TestSanitizeCameraName(t *testing.T) {
	require.Equal(t, "Front Door", sanitizeCameraName("Front Door!!", "abcd1234"))
	require.Equal(t, "Camera_abcd1234", sanitizeCameraName("", "abcd1234"))
}

func TestStopRecordingMarksStopped(t *testing.T) {
	mgr, st := newTestManager(t)
	ctx := context.Background()

	cam := &model.Camera{ID: "cam-1", Name: "Front", RTSPURL: "rtsp://example/stream"}
	require.NoError(t, st.CreateCamera(ctx, cam))

	rec, err := mgr.StartRecording(ctx, cam, model.QualityMain, 0, "", "", false)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, mgr.StopRecording(ctx, "cam-1"))

	got, err := st.GetRecording(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, model.RecordingStopped, got.Status)
}
