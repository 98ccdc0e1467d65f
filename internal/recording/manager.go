// Package recording implements the recording manager (C4): start/stop of
// per-camera recordings, the frame-to-file loop, completion classification,
// and the post-completion upload hand-off. It shares the stream manager's
// latest-frame slot rather than opening a second capture session, matching
// the purpose statement that one stream feeds both viewers and the
// recorder.
package recording

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/camerarecorder/cctv-service/internal/apperrors"
	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/codec"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/store"
	"github.com/camerarecorder/cctv-service/internal/stream"
)

// Config tunes frame-loss tolerance and storage guards.
type Config struct {
	ConsecutiveFailureMax int
	MinCompletedBytes     int64
	MinCompletedFrames    int64
	ReadTimeout           time.Duration
	ContinuousChunk       time.Duration
	StorageWarnPercent    int
	StorageBlockPercent   int
	CleanupAfterUpload    bool
	MaxUploadAttempts     int
	UploadBackoffBase     time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConsecutiveFailureMax: 30,
		MinCompletedBytes:     model.MinCompletedFileBytes,
		MinCompletedFrames:    model.MinCompletedFrames,
		ReadTimeout:           2 * time.Second,
		ContinuousChunk:       60 * time.Minute,
		StorageWarnPercent:    80,
		StorageBlockPercent:   90,
		CleanupAfterUpload:    true,
		MaxUploadAttempts:     3,
		UploadBackoffBase:     5 * time.Second,
	}
}

// CompletionHook is invoked from the record task's tail on every
// successfully completed recording, dispatching into the upload worker
// through a bounded channel rather than spawning unbounded goroutines.
type CompletionHook func(recordingID string)

// Manager owns the active record tasks.
type Manager struct {
	cfg         Config
	mediaRoot   string
	store       store.Store
	streamMgr   *stream.Manager
	prober      *codec.Prober
	objectStore objectstore.Store
	clk         clock.Clock
	logger      *logging.Logger

	onCompleted CompletionHook

	active sync.Map // map[cameraID]*recordTask
}

type recordTask struct {
	recordingID string
	cameraID    string
	cancel      context.CancelFunc
	done        chan struct{}
	stopped     int32
}

// NewManager constructs a recording manager.
func NewManager(cfg Config, mediaRoot string, st store.Store, streamMgr *stream.Manager, prober *codec.Prober, objStore objectstore.Store, clk clock.Clock, logger *logging.Logger, onCompleted CompletionHook) *Manager {
	return &Manager{
		cfg:         cfg,
		mediaRoot:   mediaRoot,
		store:       st,
		streamMgr:   streamMgr,
		prober:      prober,
		objectStore: objStore,
		clk:         clk,
		logger:      logger.WithField("component", "recording"),
		onCompleted: onCompleted,
	}
}

var sanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9 _-]`)

func sanitizeCameraName(name, shortID string) string {
	cleaned := sanitizeRe.ReplaceAllString(name, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "Camera_" + shortID
	}
	return cleaned
}

// StartRecording begins a new recording for cameraID/quality. durationMinutes
// of 0 means unbounded (continuous-chunk callers pass the chunk length
// explicitly).
func (m *Manager) StartRecording(ctx context.Context, cam *model.Camera, q model.Quality, durationMinutes int, name, scheduleID string, isScheduled bool) (*model.Recording, error) {
	if _, exists := m.active.Load(cam.ID); exists {
		return nil, apperrors.New(apperrors.KindPersistence, "recording.StartRecording", "a recording is already active on this camera")
	}

	if used, err := usedPercent(m.mediaRoot); err == nil && used >= m.cfg.StorageBlockPercent {
		return nil, apperrors.New(apperrors.KindStorage, "recording.StartRecording", fmt.Sprintf("recording volume at %d%% capacity, refusing to start", used))
	}

	shortID := uuid.New().String()[:8]
	camName := sanitizeCameraName(cam.Name, shortID)
	timestamp := m.clk.Now().Format("20060102_150405")
	prefix := ""
	if isScheduled {
		prefix = "SCHEDULED_"
	}
	relPath := filepath.Join("recordings", cam.ID, fmt.Sprintf("%s%s_%s.tmp", prefix, camName, timestamp))

	rec := &model.Recording{
		ID:         uuid.New().String(),
		CameraID:   cam.ID,
		ScheduleID: scheduleID,
		Name:       name,
		FilePath:   relPath,
		StorageType: model.StorageLocal,
		Status:     model.RecordingScheduled,
		CreatedAt:  m.clk.Now(),
		UpdatedAt:  m.clk.Now(),
	}
	if rec.Name == "" {
		rec.Name = camName
	}

	if !m.streamMgr.IsActive(cam.ID, q) {
		if err := m.streamMgr.StartStream(ctx, cam, q); err != nil {
			rec.Status = model.RecordingFailed
			rec.ErrorMessage = err.Error()
			_ = m.store.CreateRecording(ctx, rec)
			return rec, err
		}
	}

	ok, width, height := m.streamMgr.ProbeConnectivity(ctx, cam.ResolveRTSPURL(q))
	if !ok {
		rec.Status = model.RecordingFailed
		rec.ErrorMessage = "stream unreachable"
		_ = m.store.CreateRecording(ctx, rec)
		return rec, apperrors.New(apperrors.KindConnectivity, "recording.StartRecording", "stream unreachable")
	}
	if width == 0 {
		width = 1920
	}
	if height == 0 {
		height = 1080
	}
	fps := 25.0

	candidates := m.prober.Probe(width, height, fps)
	fullPath := filepath.Join(m.mediaRoot, relPath)
	var writer codec.Writer
	var lastErr error
	var chosen codec.Candidate
	for _, c := range candidates {
		w, err := codec.OpenWriter(withExt(fullPath, c.Extension), c, width, height, fps)
		if err != nil {
			lastErr = err
			continue
		}
		writer = w
		chosen = c
		break
	}
	if writer == nil {
		rec.Status = model.RecordingFailed
		rec.ErrorMessage = "no codec produced a viable writer"
		_ = m.store.CreateRecording(ctx, rec)
		return rec, apperrors.Wrap(apperrors.KindCodec, "recording.StartRecording", "codec probe exhausted", lastErr)
	}

	rec.FilePath = withExt(relPath, chosen.Extension)
	rec.Resolution = fmt.Sprintf("%dx%d", width, height)
	rec.FrameRate = fps
	rec.Codec = chosen.Tag
	rec.Status = model.RecordingActive
	rec.Start = m.clk.Now()

	if err := m.store.CreateRecording(ctx, rec); err != nil {
		writer.Close()
		return nil, err
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	task := &recordTask{recordingID: rec.ID, cameraID: cam.ID, cancel: cancel, done: make(chan struct{})}
	m.active.Store(cam.ID, task)

	var deadline time.Time
	if durationMinutes > 0 {
		deadline = m.clk.Now().Add(time.Duration(durationMinutes) * time.Minute)
	}

	go m.recordLoop(taskCtx, task, cam.ID, q, writer, deadline)

	return rec, nil
}

func withExt(path, ext string) string {
	trimmed := strings.TrimSuffix(path, filepath.Ext(path))
	return trimmed + ext
}

// recordLoop writes frames until duration elapses, StopRecording is
// called, or consecutive failures exceed the configured threshold.
func (m *Manager) recordLoop(ctx context.Context, task *recordTask, cameraID string, q model.Quality, writer codec.Writer, deadline time.Time) {
	defer close(task.done)
	defer writer.Close()
	defer m.active.Delete(cameraID)

	var framesWritten int64
	var consecutiveFail int32
	pollInterval := 40 * time.Millisecond // ~25fps cadence matching the stream reader
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	stoppedExternally := false

	for {
		select {
		case <-ctx.Done():
			stoppedExternally = atomic.LoadInt32(&task.stopped) == 1
			goto finish
		case <-ticker.C:
		}

		if !deadline.IsZero() && !m.clk.Now().Before(deadline) {
			goto finish
		}

		frame, ok := m.streamMgr.GetFrame(cameraID, q)
		if !ok || len(frame) == 0 || len(frame)%3 != 0 {
			consecutiveFail++
			if consecutiveFail > int32(m.cfg.ConsecutiveFailureMax) {
				goto finish
			}
			continue
		}
		consecutiveFail = 0

		if err := writer.WriteFrame(frame); err != nil {
			consecutiveFail++
			continue
		}
		framesWritten++
		if framesWritten%100 == 0 {
			m.logger.WithField("camera_id", cameraID).Debug("recording progress")
		}
	}

finish:
	writer.Close()
	m.finishRecording(task.recordingID, framesWritten, stoppedExternally)
}

func (m *Manager) finishRecording(recordingID string, framesWritten int64, stoppedExternally bool) {
	ctx := context.Background()
	rec, err := m.store.GetRecording(ctx, recordingID)
	if err != nil {
		return
	}

	rec.FramesWritten = framesWritten
	rec.End = m.clk.Now()
	rec.Duration = rec.End.Sub(rec.Start)

	fullPath := filepath.Join(m.mediaRoot, rec.FilePath)
	rec.FileSize = fileSize(fullPath)

	switch {
	case stoppedExternally:
		rec.Status = model.RecordingStopped
	case rec.IsComplete():
		rec.Status = model.RecordingCompleted
		if rec.FrameRate == 0 && rec.Duration > 0 {
			rec.FrameRate = float64(rec.FramesWritten) / rec.Duration.Seconds()
		}
	default:
		rec.Status = model.RecordingFailed
		rec.ErrorMessage = fmt.Sprintf("completion thresholds not met: size=%d frames=%d", rec.FileSize, rec.FramesWritten)
	}

	_ = m.store.UpdateRecording(ctx, rec)

	if rec.ScheduleID != "" {
		m.deactivateOnceScheduleIfCompleted(ctx, rec)
	}

	if rec.Status == model.RecordingCompleted && m.onCompleted != nil {
		m.onCompleted(rec.ID)
	}
}

func (m *Manager) deactivateOnceScheduleIfCompleted(ctx context.Context, rec *model.Recording) {
	if rec.Status != model.RecordingCompleted {
		return
	}
	sched, err := m.store.GetSchedule(ctx, rec.ScheduleID)
	if err != nil || sched.Kind != model.ScheduleOnce {
		return
	}
	// Defensive, idempotent: fire-time deactivation (scheduler) is
	// authoritative; this is a backstop in case that write was lost.
	if sched.Active {
		sched.Active = false
		_ = m.store.UpdateSchedule(ctx, sched)
	}
}

// StopRecording requests termination of the active recording on cameraID;
// it sets status=stopped via the record task's own finish path.
func (m *Manager) StopRecording(ctx context.Context, cameraID string) error {
	v, ok := m.active.Load(cameraID)
	if !ok {
		return nil
	}
	task := v.(*recordTask)
	atomic.StoreInt32(&task.stopped, 1)
	task.cancel()
	<-task.done
	return nil
}

// RecordingStatus returns the most recent recording for cameraID.
func (m *Manager) RecordingStatus(ctx context.Context, cameraID string) (*model.Recording, error) {
	return m.store.LatestRecording(ctx, cameraID)
}

// IsRecording reports whether a record task is active for cameraID.
func (m *Manager) IsRecording(cameraID string) bool {
	_, ok := m.active.Load(cameraID)
	return ok
}

// ActiveCount returns the number of record tasks currently running, used
// by the remote agent's heartbeat payload.
func (m *Manager) ActiveCount() int {
	count := 0
	m.active.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}
