package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/camerarecorder/cctv-service/internal/codec"
)

// HandleThumbnail implements GET /cameras/{id}/stream/thumbnail: a single
// JPEG of the latest frame with caching disabled, 204 if none is available.
func (s *Server) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	q := qualityParam(r)

	cam, err := s.Store.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown camera")
		return
	}

	frame, ok := s.StreamMgr.GetFrame(cam.ID, q)
	if !ok {
		corsAndNoCache(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	width, height, hasRes := s.StreamMgr.Resolution(cam.ID, q)
	if !hasRes {
		width, height = 1920, 1080
	}

	jpegBytes, err := codec.EncodeJPEG(frame, width, height, s.JPEGQuality)
	if err != nil {
		corsAndNoCache(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	corsAndNoCache(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(jpegBytes)
}
