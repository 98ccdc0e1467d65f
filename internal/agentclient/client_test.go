package agentclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/stream"
)

type fakeConnector struct{}

func (fakeConnector) Probe(ctx context.Context, rtspURL string) ([]byte, int, int, error) {
	return nil, 0, 0, context.DeadlineExceeded
}
func (fakeConnector) Open(ctx context.Context, rtspURL string) (stream.Session, error) {
	return nil, context.DeadlineExceeded
}

func newTestAgent(t *testing.T, centralURL string) *Agent {
	cfg := DefaultConfig()
	cfg.CentralURL = centralURL
	cfg.BearerToken = "agent-token"
	cfg.PendingQueuePath = filepath.Join(t.TempDir(), "pending.json")
	cfg.MediaRoot = t.TempDir()

	a, err := New(cfg, fakeConnector{}, objectstore.NewDisabled(), clock.New(), logging.NewLogger("test"))
	require.NoError(t, err)
	return a
}

func TestRegisterRecordingParsesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer agent-token", r.Header.Get("Authorization"))
		require.Equal(t, "/local-client/recordings/register", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"recording_id": "central-1"})
	}))
	defer srv.Close()

	a := newTestAgent(t, srv.URL)
	id, err := a.registerRecording(context.Background(), "cam-1", "", "test")
	require.NoError(t, err)
	require.Equal(t, "central-1", id)
}

func TestSendHeartbeatPostsSysinfo(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/local-client/heartbeat", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newTestAgent(t, srv.URL)
	require.NoError(t, a.sendHeartbeat(context.Background()))
	require.Contains(t, got, "free_disk_gb")
	require.Contains(t, got, "active_recordings")
}

func TestPullSchedulesCachesScheduleAndCamera(t *testing.T) {
	cam := map[string]interface{}{"ID": "cam-1", "Name": "Front", "RTSPURL": "rtsp://example/stream"}
	sched := map[string]interface{}{
		"ID": "sched-1", "CameraID": "cam-1", "Kind": "daily",
		"StartTime": int64(2 * time.Hour), "EndTime": int64(3 * time.Hour), "Active": true,
	}
	dto := []map[string]interface{}{{
		"ID": sched["ID"], "CameraID": sched["CameraID"], "Kind": sched["Kind"],
		"StartTime": sched["StartTime"], "EndTime": sched["EndTime"], "Active": sched["Active"],
		"Camera": cam,
	}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/local-client/schedules" {
			_ = json.NewEncoder(w).Encode(dto)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newTestAgent(t, srv.URL)
	require.NoError(t, a.pullSchedules(context.Background()))

	got, err := a.cache.GetSchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	require.True(t, got.Active)

	gotCam, err := a.cache.GetCamera(context.Background(), "cam-1")
	require.NoError(t, err)
	require.Equal(t, "Front", gotCam.Name)
}
