package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the full chi mux: the operator-facing control plane
// (JWT-authenticated) and the remote-agent surface under /local-client
// (bearer-token-against-ClientStore authenticated).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.HandleHealth)

	r.Route("/", func(r chi.Router) {
		r.Use(s.RequireAuth)
		if s.RateLimit != nil {
			r.Use(s.RateLimit.Middleware)
		}

		r.Get("/cameras/{id}/stream", s.HandleStream)
		r.Get("/cameras/{id}/stream/snapshot", s.HandleSnapshot)
		r.Get("/cameras/{id}/stream/thumbnail", s.HandleThumbnail)

		r.Post("/cameras/{id}/activate_stream", s.HandleActivateStream)
		r.Post("/cameras/{id}/deactivate_stream", s.HandleDeactivateStream)
		r.Get("/cameras/{id}/stream_status", s.HandleStreamStatus)
		r.Get("/cameras/{id}/stream_health", s.HandleStreamHealth)
		r.Post("/cameras/{id}/recover_stream", s.HandleRecoverStream)
		r.Post("/cameras/{id}/test_connection", s.HandleTestConnection)

		r.Post("/cameras/{id}/start_recording", s.HandleStartRecording)
		r.Post("/cameras/{id}/stop_recording", s.HandleStopRecording)
		r.Get("/cameras/{id}/recording_status", s.HandleRecordingStatus)

		r.Post("/schedules", s.HandleCreateSchedule)
		r.Get("/schedules", s.HandleListSchedules)
		r.Get("/schedules/{id}", s.HandleGetSchedule)
		r.Put("/schedules/{id}", s.HandleUpdateSchedule)
		r.Delete("/schedules/{id}", s.HandleDeleteSchedule)
		r.Post("/schedules/{id}/activate", s.HandleActivateSchedule)
		r.Post("/schedules/{id}/deactivate", s.HandleDeactivateSchedule)
		r.Get("/schedules/{id}/status", s.HandleScheduleStatus)

		r.Post("/recordings/transfer-to-cloud", s.HandleTransferToCloud)
		r.Get("/recordings/cloud-transfers", s.HandleCloudTransfers)

		r.Get("/events", s.HandleEvents)
	})

	r.Route("/local-client", func(r chi.Router) {
		r.Use(s.RequireAgentAuth)
		r.Get("/schedules", s.HandleAgentSchedules)
		r.Get("/cameras", s.HandleAgentCameras)
		r.Post("/recordings/register", s.HandleAgentRegisterRecording)
		r.Post("/recordings/status", s.HandleAgentRecordingStatus)
		r.Post("/heartbeat", s.HandleAgentHeartbeat)
	})

	return r
}
