package httpapi

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/camerarecorder/cctv-service/internal/codec"
)

type snapshotDescriptor struct {
	Filename   string `json:"filename"`
	FilePath   string `json:"file_path"`
	Timestamp  string `json:"timestamp"`
	CameraName string `json:"camera_name"`
}

// HandleSnapshot implements GET /cameras/{id}/stream/snapshot: captures one
// frame, writes it under snapshots/<cameraId>/, and returns a descriptor.
func (s *Server) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	q := qualityParam(r)

	cam, err := s.Store.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown camera")
		return
	}

	frame, ok := s.StreamMgr.GetFrame(cam.ID, q)
	if !ok {
		writeErrorStatus(w, http.StatusServiceUnavailable, "no frame available")
		return
	}
	width, height, hasRes := s.StreamMgr.Resolution(cam.ID, q)
	if !hasRes {
		width, height = 1920, 1080
	}

	jpegBytes, err := codec.EncodeJPEG(frame, width, height, s.JPEGQuality)
	if err != nil {
		writeError(w, err)
		return
	}

	timestamp := s.Clock.Now().Format("20060102_150405")
	filename := "snapshot_" + timestamp + ".jpg"
	relPath := filepath.Join("snapshots", cam.ID, filename)
	fullPath := filepath.Join(s.MediaRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		writeError(w, err)
		return
	}
	if err := os.WriteFile(fullPath, jpegBytes, 0o644); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"snapshot": snapshotDescriptor{
			Filename:   filename,
			FilePath:   relPath,
			Timestamp:  timestamp,
			CameraName: cam.Name,
		},
	})
}
