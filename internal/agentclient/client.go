// Package agentclient implements the remote capture agent side of the
// remote-agent protocol (§4.8): a long-running process that pulls
// schedules and cameras from the central service, runs its own embedded
// scheduler and recording manager against assigned cameras, and reports
// completion back over HTTP with a crash-safe pending-status queue.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/codec"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/recording"
	"github.com/camerarecorder/cctv-service/internal/schedule"
	"github.com/camerarecorder/cctv-service/internal/store"
	"github.com/camerarecorder/cctv-service/internal/stream"
	"github.com/camerarecorder/cctv-service/internal/sysinfo"
)

// Config tunes the agent's pull/heartbeat cadence and on-disk state.
type Config struct {
	CentralURL           string
	BearerToken          string
	SchedulePullInterval time.Duration
	HeartbeatInterval    time.Duration
	PendingQueuePath     string
	MaxStatusRetries     int
	MediaRoot            string
}

// DefaultConfig mirrors the specification's defaults.
func DefaultConfig() Config {
	return Config{
		SchedulePullInterval: 30 * time.Second,
		HeartbeatInterval:    60 * time.Second,
		MaxStatusRetries:     5,
	}
}

// Agent is the remote capture process. It keeps a local cache (cameras,
// schedules) in an in-memory store, and drives its own stream/recording
// managers exactly as the central service does for cameras assigned to it.
type Agent struct {
	cfg Config

	http   *http.Client
	logger *logging.Logger
	clk    clock.Clock

	cache     store.Store // local cache of assigned cameras/schedules
	streamMgr *stream.Manager
	recMgr    *recording.Manager
	sched     *schedule.Scheduler
	queue     *StatusQueue

	mu           sync.Mutex
	centralIDs   map[string]string // local recording ID -> central recording ID
	lastSyncTime time.Time
}

// New constructs an Agent. connector is the RTSP connector used for local
// capture (production: gortsplib-backed, tests: a fake).
func New(cfg Config, connector stream.Connector, objs objectstore.Store, clk clock.Clock, logger *logging.Logger) (*Agent, error) {
	cache := store.NewMemory()
	streamMgr := stream.NewManager(stream.DefaultConfig(), connector, cache, clk, logger)
	prober := codec.NewProber(cfg.MediaRoot)

	queue, err := NewStatusQueue(cfg.PendingQueuePath, cfg.MaxStatusRetries)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:        cfg,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger.WithField("component", "agent"),
		clk:        clk,
		cache:      cache,
		streamMgr:  streamMgr,
		queue:      queue,
		centralIDs: make(map[string]string),
	}

	recCfg := recording.DefaultConfig()
	a.recMgr = recording.NewManager(recCfg, cfg.MediaRoot, cache, streamMgr, prober, objs, clk, logger, a.onRecordingCompleted)
	a.sched = schedule.New(schedule.DefaultConfig(), cfg.MediaRoot, cache, a, objs, clk, logger)
	return a, nil
}

// StartRecording implements schedule.Recorder: it registers the recording
// with the central service first (so the row's system of record stays
// central per §4.8), then drives an ordinary local recording using the
// returned ID as a correlation key.
func (a *Agent) StartRecording(ctx context.Context, cam *model.Camera, q model.Quality, durationMinutes int, name, scheduleID string, isScheduled bool) (*model.Recording, error) {
	centralID, err := a.registerRecording(ctx, cam.ID, scheduleID, name)
	if err != nil {
		a.logger.WithError(err).Warn("failed to register recording with central service, recording locally only")
	}

	rec, err := a.recMgr.StartRecording(ctx, cam, q, durationMinutes, name, scheduleID, isScheduled)
	if err != nil {
		return rec, err
	}
	if centralID != "" {
		a.mu.Lock()
		a.centralIDs[rec.ID] = centralID
		a.mu.Unlock()
	}
	return rec, nil
}

// IsRecording implements schedule.Recorder.
func (a *Agent) IsRecording(cameraID string) bool { return a.recMgr.IsRecording(cameraID) }

// onRecordingCompleted is recording.Manager's CompletionHook: it pushes a
// status update (frames, size, object key once uploaded) through the
// crash-safe pending queue rather than calling the central API directly,
// so a process restart between completion and delivery isn't lost.
func (a *Agent) onRecordingCompleted(recordingID string) {
	rec, err := a.cache.GetRecording(context.Background(), recordingID)
	if err != nil {
		return
	}
	a.mu.Lock()
	centralID := a.centralIDs[recordingID]
	a.mu.Unlock()
	if centralID == "" {
		centralID = recordingID
	}

	u := statusUpdate{
		RecordingID:    centralID,
		NewStatus:      string(rec.Status),
		FramesRecorded: rec.FramesWritten,
		FileSize:       rec.FileSize,
		ErrorMessage:   rec.ErrorMessage,
	}
	if rec.StorageType == model.StorageCloud {
		u.ObjectKey = rec.FilePath
	}
	if err := a.queue.Push(u); err != nil {
		a.logger.WithError(err).Error("failed to persist pending status update")
	}
}

// --- HTTP calls against the central service ---------------------------

func (a *Agent) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.CentralURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.BearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("central service returned %d for %s", resp.StatusCode, path)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (a *Agent) registerRecording(ctx context.Context, cameraID, scheduleID, name string) (string, error) {
	var out struct {
		RecordingID string `json:"recording_id"`
	}
	err := a.doJSON(ctx, http.MethodPost, "/local-client/recordings/register", map[string]string{
		"camera_id":   cameraID,
		"schedule_id": scheduleID,
		"name":        name,
	}, &out)
	return out.RecordingID, err
}

// pullCameras refreshes the local camera cache from the central service.
func (a *Agent) pullCameras(ctx context.Context) error {
	var cams []*model.Camera
	if err := a.doJSON(ctx, http.MethodGet, "/local-client/cameras", nil, &cams); err != nil {
		return err
	}
	for _, cam := range cams {
		if _, err := a.cache.GetCamera(ctx, cam.ID); err != nil {
			_ = a.cache.CreateCamera(ctx, cam)
		} else {
			_ = a.cache.UpdateCamera(ctx, cam)
		}
	}
	return nil
}

type agentScheduleDTO struct {
	model.RecordingSchedule
	Camera *model.Camera `json:"camera"`
}

// pullSchedules refreshes the local schedule cache and re-registers every
// active schedule with the embedded scheduler.
func (a *Agent) pullSchedules(ctx context.Context) error {
	path := "/local-client/schedules"
	a.mu.Lock()
	last := a.lastSyncTime
	a.mu.Unlock()
	if !last.IsZero() {
		path += "?last_sync=" + last.UTC().Format(time.RFC3339)
	}

	var dtos []agentScheduleDTO
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return err
	}
	for _, dto := range dtos {
		sched := dto.RecordingSchedule
		if dto.Camera != nil {
			if _, err := a.cache.GetCamera(ctx, dto.Camera.ID); err != nil {
				_ = a.cache.CreateCamera(ctx, dto.Camera)
			} else {
				_ = a.cache.UpdateCamera(ctx, dto.Camera)
			}
		}
		if _, err := a.cache.GetSchedule(ctx, sched.ID); err != nil {
			_ = a.cache.CreateSchedule(ctx, &sched)
		} else {
			_ = a.cache.UpdateSchedule(ctx, &sched)
		}
		_ = a.sched.RegisterSchedule(ctx, &sched)
	}

	a.mu.Lock()
	a.lastSyncTime = a.clk.Now()
	a.mu.Unlock()
	return nil
}

func (a *Agent) sendHeartbeat(ctx context.Context) error {
	snap, err := sysinfo.Collect(a.cfg.MediaRoot)
	if err != nil {
		a.logger.WithError(err).Warn("failed to collect heartbeat sysinfo")
		snap = sysinfo.Snapshot{}
	}
	return a.doJSON(ctx, http.MethodPost, "/local-client/heartbeat", map[string]interface{}{
		"free_disk_gb":      snap.FreeDiskGB,
		"system_info":       snap.Info,
		"active_recordings": a.recMgr.ActiveCount(),
	}, nil)
}

func (a *Agent) drainQueue(ctx context.Context) {
	a.queue.Drain(func(u statusUpdate) error {
		return a.doJSON(ctx, http.MethodPost, "/local-client/recordings/status", u, nil)
	})
}

// Run starts the agent's pull, heartbeat and queue-drain loops, and the
// embedded scheduler, blocking until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.sched.Start(ctx)
	defer a.sched.Stop()

	if err := a.pullCameras(ctx); err != nil {
		a.logger.WithError(err).Warn("initial camera pull failed")
	}
	if err := a.pullSchedules(ctx); err != nil {
		a.logger.WithError(err).Warn("initial schedule pull failed")
	}

	scheduleTicker := time.NewTicker(a.cfg.SchedulePullInterval)
	defer scheduleTicker.Stop()
	heartbeatTicker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer heartbeatTicker.Stop()
	queueTicker := time.NewTicker(5 * time.Second)
	defer queueTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-scheduleTicker.C:
			if err := a.pullSchedules(ctx); err != nil {
				a.logger.WithError(err).Warn("schedule pull failed")
			}
		case <-heartbeatTicker.C:
			if err := a.sendHeartbeat(ctx); err != nil {
				a.logger.WithError(err).Warn("heartbeat failed")
			}
		case <-queueTicker.C:
			a.drainQueue(ctx)
		}
	}
}

var _ schedule.Recorder = (*Agent)(nil)
