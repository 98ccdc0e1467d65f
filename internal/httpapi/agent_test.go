package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/model"
)

// TestAgentRecordingStatusCompletedProducesSaneDuration verifies the
// register -> completed-push flow the remote-agent protocol drives: a
// central Recording row created at registration time and later marked
// completed over /local-client/recordings/status must end up with a
// duration close to the real elapsed time, not a multi-century value from
// an unset Start.
func TestAgentRecordingStatusCompletedProducesSaneDuration(t *testing.T) {
	srv, st := newTestServer(t)

	client := &model.LocalRecordingClient{
		ID: "agent-1", BearerToken: "agent-token",
		AssignedCameras: map[string]bool{"cam-1": true},
	}
	require.NoError(t, st.CreateClient(t.Context(), client))

	cam := &model.Camera{ID: "cam-1", Online: true, RecordingMode: model.RecordingModeLocalClient}
	require.NoError(t, st.CreateCamera(t.Context(), cam))

	ctx := context.WithValue(t.Context(), agentClientKey{}, client)

	registerBody, _ := json.Marshal(registerRecordingRequest{CameraID: "cam-1", Name: "test"})
	registerReq := httptest.NewRequest("POST", "/local-client/recordings/register", bytes.NewReader(registerBody)).WithContext(ctx)
	registerRR := httptest.NewRecorder()
	srv.HandleAgentRegisterRecording(registerRR, registerReq)
	require.Equal(t, 200, registerRR.Code)

	var registerResp map[string]string
	require.NoError(t, json.NewDecoder(registerRR.Body).Decode(&registerResp))
	recordingID := registerResp["recording_id"]
	require.NotEmpty(t, recordingID)

	rec, err := st.GetRecording(t.Context(), recordingID)
	require.NoError(t, err)
	require.False(t, rec.Start.IsZero(), "Start must be set at registration time")

	fakeClk, ok := srv.Clock.(*clock.Fake)
	require.True(t, ok, "test server clock must be the fake clock")
	fakeClk.Advance(5 * time.Second)

	statusBody, _ := json.Marshal(recordingStatusRequest{
		RecordingID:    recordingID,
		NewStatus:      string(model.RecordingCompleted),
		FramesRecorded: 120,
		FileSize:       4096,
	})
	statusReq := httptest.NewRequest("POST", "/local-client/recordings/status", bytes.NewReader(statusBody)).WithContext(ctx)
	statusRR := httptest.NewRecorder()
	srv.HandleAgentRecordingStatus(statusRR, statusReq)
	require.Equal(t, 200, statusRR.Code)

	got, err := st.GetRecording(t.Context(), recordingID)
	require.NoError(t, err)
	require.Equal(t, model.RecordingCompleted, got.Status)
	require.InDelta(t, 5*time.Second, got.Duration, float64(time.Second), "duration should reflect elapsed time since registration, not a zero-value Start")
}
