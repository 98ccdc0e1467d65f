package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/store"
)

type agentScheduleDTO struct {
	model.RecordingSchedule
	Camera *model.Camera `json:"camera"`
}

// HandleAgentSchedules implements GET /local-client/schedules?last_sync=ISO
// (§4.8): only schedules belonging to cameras assigned to the requesting
// agent and in local_client recording mode.
func (s *Server) HandleAgentSchedules(w http.ResponseWriter, r *http.Request) {
	client, ok := agentClientFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "unrecognised agent token")
		return
	}

	var lastSync time.Time
	if raw := r.URL.Query().Get("last_sync"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			lastSync = t
		}
	}

	cams, err := s.Store.ListCameras(r.Context(), store.CameraFilter{RecordingMode: model.RecordingModeLocalClient, AssignedAgent: client.ID})
	if err != nil {
		writeError(w, err)
		return
	}

	var out []agentScheduleDTO
	for _, cam := range cams {
		if !client.AssignedCameras[cam.ID] {
			continue
		}
		scheds, err := s.Store.ListSchedules(r.Context(), store.ScheduleFilter{CameraID: cam.ID, ActiveOnly: true})
		if err != nil {
			continue
		}
		for _, sched := range scheds {
			if !lastSync.IsZero() && sched.UpdatedAt.Before(lastSync) {
				continue
			}
			out = append(out, agentScheduleDTO{RecordingSchedule: *sched, Camera: cam})
		}
	}
	if out == nil {
		out = []agentScheduleDTO{}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleAgentCameras implements GET /local-client/cameras.
func (s *Server) HandleAgentCameras(w http.ResponseWriter, r *http.Request) {
	client, ok := agentClientFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "unrecognised agent token")
		return
	}
	cams, err := s.Store.ListCameras(r.Context(), store.CameraFilter{RecordingMode: model.RecordingModeLocalClient, AssignedAgent: client.ID})
	if err != nil {
		writeError(w, err)
		return
	}
	var out []*model.Camera
	for _, cam := range cams {
		if client.AssignedCameras[cam.ID] {
			out = append(out, cam)
		}
	}
	if out == nil {
		out = []*model.Camera{}
	}
	writeJSON(w, http.StatusOK, out)
}

type registerRecordingRequest struct {
	CameraID   string `json:"camera_id"`
	ScheduleID string `json:"schedule_id"`
	Name       string `json:"name"`
}

// HandleAgentRegisterRecording implements POST /local-client/recordings/register.
func (s *Server) HandleAgentRegisterRecording(w http.ResponseWriter, r *http.Request) {
	client, ok := agentClientFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "unrecognised agent token")
		return
	}

	var req registerRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !client.AssignedCameras[req.CameraID] {
		writeErrorStatus(w, http.StatusForbidden, "camera is not assigned to this agent")
		return
	}
	cam, err := s.Store.GetCamera(r.Context(), req.CameraID)
	if err != nil || cam.RecordingMode != model.RecordingModeLocalClient {
		writeErrorStatus(w, http.StatusBadRequest, "camera is not in local_client recording mode")
		return
	}

	rec := &model.Recording{
		ID:               uuid.New().String(),
		CameraID:         req.CameraID,
		ScheduleID:       req.ScheduleID,
		Name:             req.Name,
		Status:           model.RecordingScheduled,
		StorageType:      model.StorageLocal,
		UploadStatus:     "pending",
		RecordedByClient: client.ID,
		// Start is set here rather than left for the completed status push:
		// the agent registers the recording immediately before starting its
		// own local capture, so this is within the property's 1s tolerance
		// of the actual local Start and avoids a zero-value Start producing
		// a multi-century Duration once the completed push computes
		// End.Sub(Start).
		Start:     s.Clock.Now(),
		CreatedAt: s.Clock.Now(),
		UpdatedAt: s.Clock.Now(),
	}
	if err := s.Store.CreateRecording(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"recording_id": rec.ID})
}

type recordingStatusRequest struct {
	RecordingID    string  `json:"recording_id"`
	NewStatus      string  `json:"new_status"`
	Progress       float64 `json:"progress"`
	FramesRecorded int64   `json:"frames_recorded"`
	FileSize       int64   `json:"file_size"`
	ErrorMessage   string  `json:"error_message"`
	ObjectKey      string  `json:"object_key"`
}

// HandleAgentRecordingStatus implements POST /local-client/recordings/status.
func (s *Server) HandleAgentRecordingStatus(w http.ResponseWriter, r *http.Request) {
	client, ok := agentClientFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "unrecognised agent token")
		return
	}

	var req recordingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.Store.GetRecording(r.Context(), req.RecordingID)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown recording")
		return
	}
	if rec.RecordedByClient != client.ID {
		writeErrorStatus(w, http.StatusForbidden, "recording is not owned by this agent")
		return
	}

	rec.Status = model.RecordingStatus(req.NewStatus)
	if req.FramesRecorded > 0 {
		rec.FramesWritten = req.FramesRecorded
	}
	if req.FileSize > 0 {
		rec.FileSize = req.FileSize
	}
	if req.ErrorMessage != "" {
		rec.ErrorMessage = req.ErrorMessage
	}
	rec.UpdatedAt = s.Clock.Now()

	switch rec.Status {
	case model.RecordingCompleted:
		rec.End = s.Clock.Now()
		rec.Duration = rec.End.Sub(rec.Start)
		if req.ObjectKey != "" {
			rec.StorageType = model.StorageCloud
			rec.FilePath = req.ObjectKey
			rec.UploadStatus = ""
		}
	case model.RecordingFailed:
		rec.UploadStatus = "failed"
	}

	if err := s.Store.UpdateRecording(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}
	s.Publish(r.Context(), "recording", rec.ID, map[string]interface{}{"status": string(rec.Status)})
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type heartbeatRequest struct {
	IP               string            `json:"ip"`
	ActiveRecordings int               `json:"active_recordings"`
	FreeDiskGB       float64           `json:"free_disk_gb"`
	SystemInfo       map[string]string `json:"system_info"`
}

// HandleAgentHeartbeat implements POST /local-client/heartbeat.
func (s *Server) HandleAgentHeartbeat(w http.ResponseWriter, r *http.Request) {
	client, ok := agentClientFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "unrecognised agent token")
		return
	}

	var req heartbeatRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	client.LastSeen = s.Clock.Now()
	client.Status = model.ClientOnline
	client.FreeDiskGB = req.FreeDiskGB
	client.SystemInfo = req.SystemInfo

	if err := s.Store.UpdateClient(r.Context(), client); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
