package httpapi

import (
	"context"

	"github.com/camerarecorder/cctv-service/internal/auth"
	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/recording"
	"github.com/camerarecorder/cctv-service/internal/schedule"
	"github.com/camerarecorder/cctv-service/internal/store"
	"github.com/camerarecorder/cctv-service/internal/stream"
	"github.com/camerarecorder/cctv-service/internal/upload"
)

// Server bundles the dependencies every handler group needs. It holds no
// state of its own beyond the event hub; everything else is delegated to
// the core components built in cmd/server.
type Server struct {
	MediaRoot string

	Store     store.Store
	StreamMgr *stream.Manager
	RecMgr    *recording.Manager
	Scheduler *schedule.Scheduler
	Objects   objectstore.Store
	Uploader  *upload.Worker
	Verifier  auth.Verifier
	Clock     clock.Clock
	Logger    *logging.Logger

	JPEGQuality int

	// RateLimit guards the operator-facing routes when set; nil disables
	// rate limiting (e.g. in tests).
	RateLimit *RateLimiter

	events *eventHub
}

// WithRateLimit attaches a per-client rate limiter, returning s for
// chaining at construction time.
func (s *Server) WithRateLimit(rps float64, burst int) *Server {
	s.RateLimit = NewRateLimiter(rps, burst)
	return s
}

// New constructs a Server with its event hub ready to accept subscribers.
func New(mediaRoot string, st store.Store, streamMgr *stream.Manager, recMgr *recording.Manager, sched *schedule.Scheduler, objs objectstore.Store, uploader *upload.Worker, verifier auth.Verifier, clk clock.Clock, logger *logging.Logger) *Server {
	return &Server{
		MediaRoot:   mediaRoot,
		Store:       st,
		StreamMgr:   streamMgr,
		RecMgr:      recMgr,
		Scheduler:   sched,
		Objects:     objs,
		Uploader:    uploader,
		Verifier:    verifier,
		Clock:       clk,
		Logger:      logger.WithField("component", "httpapi"),
		JPEGQuality: 85,
		events:      newEventHub(logger.WithField("component", "events")),
	}
}

// Publish broadcasts a state-transition notification to connected /events
// subscribers; a no-op when nobody is listening.
func (s *Server) Publish(ctx context.Context, kind, entityID string, payload map[string]interface{}) {
	s.events.publish(event{Kind: kind, EntityID: entityID, Payload: payload})
}
