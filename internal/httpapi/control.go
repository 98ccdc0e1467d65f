package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/store"
)

// --- stream control -------------------------------------------------------

// HandleActivateStream implements POST /cameras/{id}/activate_stream.
func (s *Server) HandleActivateStream(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	q := qualityParam(r)

	cam, err := s.Store.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown camera")
		return
	}
	if err := s.StreamMgr.StartStream(r.Context(), cam, q); err != nil {
		writeError(w, err)
		return
	}
	s.Publish(r.Context(), "camera", cam.ID, map[string]interface{}{"status": "active"})
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleDeactivateStream implements POST /cameras/{id}/deactivate_stream.
func (s *Server) HandleDeactivateStream(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	q := qualityParam(r)

	if err := s.StreamMgr.StopStream(r.Context(), cameraID, q); err != nil {
		writeError(w, err)
		return
	}
	s.Publish(r.Context(), "camera", cameraID, map[string]interface{}{"status": "inactive"})
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleStreamStatus implements GET /cameras/{id}/stream_status.
func (s *Server) HandleStreamStatus(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	q := qualityParam(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active": s.StreamMgr.IsActive(cameraID, q),
	})
}

// HandleStreamHealth implements GET /cameras/{id}/stream_health.
func (s *Server) HandleStreamHealth(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	q := qualityParam(r)
	h := s.StreamMgr.StreamHealth(cameraID, q)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          h.Status,
		"last_update":     h.LastUpdate,
		"viewers":         h.Viewers,
		"frame_count":     h.FrameCount,
		"reconnect_count": h.ReconnectCount,
	})
}

// HandleRecoverStream implements POST /cameras/{id}/recover_stream.
func (s *Server) HandleRecoverStream(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	q := qualityParam(r)

	cam, err := s.Store.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown camera")
		return
	}
	if err := s.StreamMgr.RecoverStream(r.Context(), cam, q); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleTestConnection implements POST /cameras/{id}/test_connection: a
// one-shot connectivity probe without starting a stream.
func (s *Server) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	q := qualityParam(r)

	cam, err := s.Store.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown camera")
		return
	}
	rtspURL := cam.ResolveRTSPURL(q)
	if rtspURL == "" {
		writeErrorStatus(w, http.StatusBadRequest, "camera has no RTSP URL configured")
		return
	}
	ok, width, height := s.StreamMgr.ProbeConnectivity(r.Context(), rtspURL)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reachable": ok,
		"width":     width,
		"height":    height,
	})
}

// --- recording control ----------------------------------------------------

type startRecordingRequest struct {
	DurationMinutes int    `json:"duration_minutes"`
	RecordingName   string `json:"recording_name"`
	Quality         string `json:"quality"`
}

// HandleStartRecording implements POST /cameras/{id}/start_recording.
func (s *Server) HandleStartRecording(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")

	var req startRecordingRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	q := model.QualityMain
	if req.Quality == string(model.QualitySub) {
		q = model.QualitySub
	}

	cam, err := s.Store.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown camera")
		return
	}

	rec, err := s.RecMgr.StartRecording(r.Context(), cam, q, req.DurationMinutes, req.RecordingName, "", false)
	if err != nil {
		writeError(w, err)
		return
	}
	s.Publish(r.Context(), "recording", rec.ID, map[string]interface{}{"status": string(rec.Status)})
	writeJSON(w, http.StatusOK, rec)
}

// HandleStopRecording implements POST /cameras/{id}/stop_recording.
func (s *Server) HandleStopRecording(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	if err := s.RecMgr.StopRecording(r.Context(), cameraID); err != nil {
		writeError(w, err)
		return
	}
	s.Publish(r.Context(), "recording", cameraID, map[string]interface{}{"status": "stopped"})
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleRecordingStatus implements GET /cameras/{id}/recording_status.
func (s *Server) HandleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	rec, err := s.RecMgr.RecordingStatus(r.Context(), cameraID)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeErrorStatus(w, http.StatusNotFound, "no recording found for camera")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- schedule CRUD ---------------------------------------------------------

type scheduleRequest struct {
	CameraID  string   `json:"camera_id"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	StartTime string   `json:"start_time"` // "HH:MM:SS"
	EndTime   string   `json:"end_time"`
	StartDate string   `json:"start_date"` // RFC3339 date, kind=once
	Weekdays  []string `json:"weekdays"`
	Active    bool     `json:"active"`
}

func parseHMSDuration(hms string) time.Duration {
	t, err := time.Parse("15:04:05", hms)
	if err != nil {
		return 0
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

var weekdayByName = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// HandleCreateSchedule implements POST /schedules.
func (s *Server) HandleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sched := &model.RecordingSchedule{
		ID:        uuid.New().String(),
		CameraID:  req.CameraID,
		Name:      req.Name,
		Kind:      model.ScheduleKind(req.Kind),
		StartTime: parseHMSDuration(req.StartTime),
		EndTime:   parseHMSDuration(req.EndTime),
		Active:    req.Active,
		CreatedAt: s.Clock.Now(),
		UpdatedAt: s.Clock.Now(),
	}
	if req.StartDate != "" {
		if t, err := time.Parse(time.RFC3339, req.StartDate); err == nil {
			sched.StartDate = &t
		}
	}
	if len(req.Weekdays) > 0 {
		sched.Weekdays = make(map[time.Weekday]bool, len(req.Weekdays))
		for _, name := range req.Weekdays {
			if d, ok := weekdayByName[name]; ok {
				sched.Weekdays[d] = true
			}
		}
	}

	if err := s.Store.CreateSchedule(r.Context(), sched); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Scheduler.RegisterSchedule(r.Context(), sched); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// HandleListSchedules implements GET /schedules.
func (s *Server) HandleListSchedules(w http.ResponseWriter, r *http.Request) {
	f := store.ScheduleFilter{CameraID: r.URL.Query().Get("camera_id")}
	scheds, err := s.Store.ListSchedules(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheds)
}

// HandleGetSchedule implements GET /schedules/{id}.
func (s *Server) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := s.Store.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown schedule")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// HandleUpdateSchedule implements PUT /schedules/{id}.
func (s *Server) HandleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sched, err := s.Store.GetSchedule(r.Context(), id)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown schedule")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sched.Name = req.Name
	sched.StartTime = parseHMSDuration(req.StartTime)
	sched.EndTime = parseHMSDuration(req.EndTime)
	sched.Active = req.Active
	sched.UpdatedAt = s.Clock.Now()
	if req.StartDate != "" {
		if t, err := time.Parse(time.RFC3339, req.StartDate); err == nil {
			sched.StartDate = &t
		}
	}

	if err := s.Store.UpdateSchedule(r.Context(), sched); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Scheduler.RegisterSchedule(r.Context(), sched); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// HandleDeleteSchedule implements DELETE /schedules/{id}.
func (s *Server) HandleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.Scheduler.RemoveSchedule(id)
	if err := s.Store.DeleteSchedule(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) setScheduleActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")
	sched, err := s.Store.GetSchedule(r.Context(), id)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown schedule")
		return
	}
	sched.Active = active
	sched.UpdatedAt = s.Clock.Now()
	if err := s.Store.UpdateSchedule(r.Context(), sched); err != nil {
		writeError(w, err)
		return
	}
	if active {
		if err := s.Scheduler.RegisterSchedule(r.Context(), sched); err != nil {
			writeError(w, err)
			return
		}
	} else {
		s.Scheduler.RemoveSchedule(id)
	}
	writeJSON(w, http.StatusOK, sched)
}

// HandleActivateSchedule implements POST /schedules/{id}/activate.
func (s *Server) HandleActivateSchedule(w http.ResponseWriter, r *http.Request) {
	s.setScheduleActive(w, r, true)
}

// HandleDeactivateSchedule implements POST /schedules/{id}/deactivate.
func (s *Server) HandleDeactivateSchedule(w http.ResponseWriter, r *http.Request) {
	s.setScheduleActive(w, r, false)
}

// HandleScheduleStatus implements GET /schedules/{id}/status.
func (s *Server) HandleScheduleStatus(w http.ResponseWriter, r *http.Request) {
	sched, err := s.Store.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown schedule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active": sched.Active,
		"kind":   sched.Kind,
	})
}

// --- transfers --------------------------------------------------------------

type transferToCloudRequest struct {
	RecordingIDs []string `json:"recording_ids"`
	BatchSize    int      `json:"batch_size"`
}

// HandleTransferToCloud implements POST /recordings/transfer-to-cloud: an
// operator-triggered subset of what the background sync sweep does
// automatically, for recordings named explicitly or a batch of pending ones.
func (s *Server) HandleTransferToCloud(w http.ResponseWriter, r *http.Request) {
	var req transferToCloudRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	batch := req.BatchSize
	if batch <= 0 {
		batch = 10
	}

	var ids []string
	if len(req.RecordingIDs) > 0 {
		ids = req.RecordingIDs
	} else {
		recs, err := s.Store.ListRecordings(r.Context(), store.RecordingFilter{Status: model.RecordingCompleted, StorageType: model.StorageLocal})
		if err != nil {
			writeError(w, err)
			return
		}
		for i, rec := range recs {
			if i >= batch {
				break
			}
			ids = append(ids, rec.ID)
		}
	}

	for _, id := range ids {
		s.Uploader.OnRecordingCompleted(id)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"queued": len(ids)})
}

// HandleCloudTransfers implements GET /recordings/cloud-transfers.
func (s *Server) HandleCloudTransfers(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.Store.ListTransferJobs(r.Context(), model.TransferPending, model.TransferUploading, model.TransferCompleted, model.TransferFailed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
