package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/camerarecorder/cctv-service/internal/auth"
	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/codec"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/recording"
	"github.com/camerarecorder/cctv-service/internal/schedule"
	"github.com/camerarecorder/cctv-service/internal/store"
	"github.com/camerarecorder/cctv-service/internal/stream"
	"github.com/camerarecorder/cctv-service/internal/upload"
)

type fakeConnector struct{}

func (fakeConnector) Probe(ctx context.Context, rtspURL string) ([]byte, int, int, error) {
	return make([]byte, 320*240*3), 320, 240, nil
}
func (fakeConnector) Open(ctx context.Context, rtspURL string) (stream.Session, error) {
	return nil, context.DeadlineExceeded
}

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	st := store.NewMemory()
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	logger := logging.NewLogger("test")

	mediaRoot := t.TempDir()
	streamMgr := stream.NewManager(stream.DefaultConfig(), fakeConnector{}, st, clk, logger)
	recCfg := recording.DefaultConfig()
	recMgr := recording.NewManager(recCfg, mediaRoot, st, streamMgr, codec.NewProber(t.TempDir()), objectstore.NewDisabled(), clk, logger, nil)
	sched := schedule.New(schedule.DefaultConfig(), mediaRoot, st, recMgr, objectstore.NewDisabled(), clk, logger)
	up := upload.New(upload.DefaultConfig(), mediaRoot, st, objectstore.NewDisabled(), clk, logger)

	srv := New(mediaRoot, st, streamMgr, recMgr, sched, objectstore.NewDisabled(), up, simpleVerifier{}, clk, logger)
	return srv, st
}

// simpleVerifier accepts any non-empty token as an operator principal;
// used only to keep the Router/auth wiring under test without dragging in
// JWT signing.
type simpleVerifier struct{}

func (simpleVerifier) Verify(ctx context.Context, token string) (auth.Principal, error) {
	if token == "" {
		return auth.Principal{}, context.DeadlineExceeded
	}
	return auth.Principal{Subject: "operator", Roles: []string{"operator"}}, nil
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/schedules", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScheduleCreateListGetDelete(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	cam := &model.Camera{ID: "cam-1", Name: "Front", RTSPURL: "rtsp://example/stream"}
	require.NoError(t, st.CreateCamera(ctx, cam))

	body := `{"camera_id":"cam-1","name":"nightly","kind":"daily","start_time":"02:00:00","end_time":"03:00:00","active":true}`
	r := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	list, err := st.ListSchedules(ctx, store.ScheduleFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	r = httptest.NewRequest(http.MethodGet, "/schedules/"+list[0].ID, nil)
	r.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodDelete, "/schedules/"+list[0].ID, nil)
	r.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	list, err = st.ListSchedules(ctx, store.ScheduleFilter{})
	require.NoError(t, err)
	require.Len(t, list, 0)
}

func TestAgentHeartbeatRequiresKnownToken(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	client := &model.LocalRecordingClient{ID: "agent-1", Name: "edge-1", BearerToken: "secret-token", AssignedCameras: map[string]bool{}}
	require.NoError(t, st.CreateClient(ctx, client))

	body := `{"free_disk_gb": 42.0, "system_info": {"os":"linux"}}`
	r := httptest.NewRequest(http.MethodPost, "/local-client/heartbeat", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := st.GetClientByToken(ctx, "secret-token")
	require.NoError(t, err)
	require.Equal(t, model.ClientOnline, got.Status)
	require.InDelta(t, 42.0, got.FreeDiskGB, 0.001)

	r = httptest.NewRequest(http.MethodPost, "/local-client/heartbeat", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer wrong-token")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
