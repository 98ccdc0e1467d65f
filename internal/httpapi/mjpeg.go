package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/camerarecorder/cctv-service/internal/codec"
	"github.com/camerarecorder/cctv-service/internal/model"
)

const (
	mjpegBoundary        = "frame"
	mjpegTargetFPS        = 25.0
	mjpegReuseFrameMax    = 3
	mjpegLivenessInterval = 5 * time.Second
	mjpegRecoverThreshold = 5
)

func qualityParam(r *http.Request) model.Quality {
	q := r.URL.Query().Get("quality")
	if q == string(model.QualitySub) {
		return model.QualitySub
	}
	return model.QualityMain
}

// HandleStream implements GET /cameras/{id}/stream — the multipart MJPEG
// live endpoint (§4.7).
func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	q := qualityParam(r)

	cam, err := s.Store.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "unknown camera")
		return
	}
	if cam.Status == model.CameraStatusError {
		writeErrorStatus(w, http.StatusBadRequest, "camera is in an error state")
		return
	}
	rtspURL := cam.ResolveRTSPURL(q)
	if rtspURL == "" {
		writeErrorStatus(w, http.StatusBadRequest, "camera has no RTSP URL configured")
		return
	}

	if cam.Status == model.CameraStatusInactive {
		cam.Status = model.CameraStatusActive
		cam.Streaming = false
		_ = s.Store.UpdateCamera(r.Context(), cam)
	}

	if !s.StreamMgr.IsActive(cam.ID, q) {
		if err := s.StreamMgr.StartStream(r.Context(), cam, q); err != nil {
			writeErrorStatus(w, http.StatusServiceUnavailable, "stream unreachable")
			return
		}
	} else {
		ok, _, _ := s.StreamMgr.ProbeConnectivity(r.Context(), rtspURL)
		if !ok {
			writeErrorStatus(w, http.StatusServiceUnavailable, "stream unreachable")
			return
		}
	}

	s.StreamMgr.AddViewer(cam.ID, q)
	defer s.StreamMgr.RemoveViewer(r.Context(), cam.ID, q)

	corsAndNoCache(w)
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mjpegBoundary))
	w.Header().Set("X-Camera-Name", cam.Name)
	w.Header().Set("X-Stream-Quality", string(q))
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)

	// limiter paces frame delivery to mjpegTargetFPS; burst of 1 keeps it
	// from releasing a backlog of ticks after a slow encode or write.
	limiter := rate.NewLimiter(rate.Limit(mjpegTargetFPS), 1)
	livenessTicker := time.NewTicker(mjpegLivenessInterval)
	defer livenessTicker.Stop()

	width, height, _ := s.StreamMgr.Resolution(cam.ID, q)
	if width == 0 {
		width = 1920
	}
	if height == 0 {
		height = 1080
	}

	var lastFrame []byte
	reuseCount := 0
	consecutiveEncodeFailures := 0

	for {
		select {
		case <-r.Context().Done():
			return
		case <-livenessTicker.C:
			if !s.StreamMgr.IsActive(cam.ID, q) {
				return
			}
		default:
		}

		if err := limiter.Wait(r.Context()); err != nil {
			return
		}

		frame, ok := s.StreamMgr.GetFrame(cam.ID, q)
		if !ok || len(frame) == 0 {
			if lastFrame == nil || reuseCount >= mjpegReuseFrameMax {
				continue
			}
			frame = lastFrame
			reuseCount++
		} else {
			lastFrame = frame
			reuseCount = 0
		}

		jpegBytes, err := codec.EncodeJPEG(frame, width, height, s.JPEGQuality)
		if err != nil {
			consecutiveEncodeFailures++
			if consecutiveEncodeFailures >= mjpegRecoverThreshold {
				if recErr := s.StreamMgr.RecoverStream(r.Context(), cam, q); recErr != nil {
					return
				}
				consecutiveEncodeFailures = 0
			}
			continue
		}
		consecutiveEncodeFailures = 0

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(jpegBytes)); err != nil {
			return
		}
		if _, err := w.Write(jpegBytes); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}
