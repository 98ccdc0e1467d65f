package httpapi

import (
	"net/http"
	"time"
)

// healthStatus mirrors the basic/liveness health vocabulary: healthy,
// degraded (operational but something needs attention) or unhealthy.
type healthStatus string

const (
	healthStatusHealthy   healthStatus = "healthy"
	healthStatusDegraded  healthStatus = "degraded"
	healthStatusUnhealthy healthStatus = "unhealthy"
)

type healthResponse struct {
	Status           healthStatus `json:"status"`
	Timestamp        time.Time    `json:"timestamp"`
	ActiveStreams    int          `json:"active_streams"`
	ActiveRecordings int          `json:"active_recordings"`
}

// HandleHealth implements GET /health — an unauthenticated liveness/
// readiness probe for container orchestration. It always answers 200 with
// status healthy and the active stream and recording counts; it does not
// produce the degraded or unhealthy values.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:           healthStatusHealthy,
		Timestamp:        s.Clock.Now(),
		ActiveStreams:    s.StreamMgr.ActiveCount(),
		ActiveRecordings: s.RecMgr.ActiveCount(),
	}
	writeJSON(w, http.StatusOK, resp)
}
