// Package stream implements the per-(camera,quality) RTSP capture loop
// (C3): robust connectivity probing, a single-slot latest-frame buffer,
// viewer accounting, and consecutive-failure based recovery. Concurrency
// pattern (one owned reader task per stream key, sync.Map bookkeeping,
// atomic counters) is grounded in the teacher's RTSPKeepaliveReader.
package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/camerarecorder/cctv-service/internal/apperrors"
	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/store"
)

// Status is the coarse health classification returned by StreamHealth.
type Status string

const (
	StatusInactive  Status = "inactive"
	StatusUnhealthy Status = "unhealthy"
	StatusHealthy   Status = "healthy"
)

// UnhealthyAfter is the no-new-frame window after which a running stream is
// reported unhealthy rather than healthy.
const UnhealthyAfter = 30 * time.Second

// Config tunes probing, pacing and failure thresholds.
type Config struct {
	ProbeAttempts         int
	ProbeDelay            time.Duration
	MaxResolutionWidth    int
	MaxResolutionHeight   int
	TargetFPS             float64
	ConsecutiveFailureMax int
	ReadTimeout           time.Duration
}

// DefaultConfig mirrors the specification's defaults.
func DefaultConfig() Config {
	return Config{
		ProbeAttempts:         5,
		ProbeDelay:            2 * time.Second,
		MaxResolutionWidth:    1920,
		MaxResolutionHeight:   1080,
		TargetFPS:             25,
		ConsecutiveFailureMax: 10,
		ReadTimeout:           2 * time.Second,
	}
}

// Connector opens an RTSP session and yields frames; satisfied in
// production by a gortsplib-backed connector and in tests by a fake.
type Connector interface {
	// Probe performs a single connect-and-read-one-frame attempt, returning
	// the frame bytes (non-empty on success) and the observed resolution.
	Probe(ctx context.Context, rtspURL string) (frame []byte, width, height int, err error)
	// Open starts a persistent session; ReadFrame is called repeatedly by
	// the reader task until the returned Session is closed.
	Open(ctx context.Context, rtspURL string) (Session, error)
}

// Session is a live RTSP connection yielding frames one at a time.
type Session interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// slot is the single-element overwriting latest-frame buffer for one
// stream key; the writer never blocks on readers.
type slot struct {
	mu         sync.RWMutex
	frame      []byte
	lastUpdate time.Time
}

func (s *slot) set(frame []byte, now time.Time) {
	s.mu.Lock()
	s.frame = frame
	s.lastUpdate = now
	s.mu.Unlock()
}

func (s *slot) get() ([]byte, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.lastUpdate
}

type streamSession struct {
	key      string
	cameraID string
	quality  model.Quality

	width  int
	height int

	cancel context.CancelFunc
	done   chan struct{}

	slot slot

	viewers         int32
	frameCount      int64
	consecutiveFail int32
	reconnectCount  int64
}

// Manager owns all active stream keys.
type Manager struct {
	cfg       Config
	connector Connector
	store     store.CameraStore
	clock     clock.Clock
	logger    *logging.Logger

	sessions sync.Map // map[string]*streamSession

	startStopMu sync.Map // map[string]*sync.Mutex, serialises start/stop per key
}

// NewManager constructs a stream manager.
func NewManager(cfg Config, connector Connector, cameraStore store.CameraStore, clk clock.Clock, logger *logging.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		connector: connector,
		store:     cameraStore,
		clock:     clk,
		logger:    logger.WithField("component", "stream"),
	}
}

func key(cameraID string, q model.Quality) string {
	return fmt.Sprintf("%s:%s", cameraID, q)
}

func (m *Manager) keyMutex(k string) *sync.Mutex {
	v, _ := m.startStopMu.LoadOrStore(k, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ProbeConnectivity performs the robust connectivity test: up to
// cfg.ProbeAttempts attempts with cfg.ProbeDelay between them, declaring
// reachable only when a non-empty frame came back.
func (m *Manager) ProbeConnectivity(ctx context.Context, rtspURL string) (ok bool, width, height int) {
	for attempt := 0; attempt < m.cfg.ProbeAttempts; attempt++ {
		frame, w, h, err := m.connector.Probe(ctx, rtspURL)
		if err == nil && len(frame) > 0 {
			return true, w, h
		}
		if attempt < m.cfg.ProbeAttempts-1 {
			m.clock.Sleep(m.cfg.ProbeDelay)
		}
	}
	return false, 0, 0
}

// StartStream resolves the RTSP URL, probes connectivity, and spawns the
// reader task for (cameraID, quality).
func (m *Manager) StartStream(ctx context.Context, cam *model.Camera, q model.Quality) error {
	k := key(cam.ID, q)
	mu := m.keyMutex(k)
	mu.Lock()
	defer mu.Unlock()

	if _, exists := m.sessions.Load(k); exists {
		return nil
	}

	rtspURL := cam.ResolveRTSPURL(q)
	if rtspURL == "" {
		return apperrors.New(apperrors.KindConnectivity, "stream.StartStream", "no RTSP URL available")
	}

	ok, width, height := m.ProbeConnectivity(ctx, rtspURL)
	if !ok {
		return apperrors.New(apperrors.KindConnectivity, "stream.StartStream", "stream unreachable after probe attempts")
	}
	if width == 0 || width > m.cfg.MaxResolutionWidth {
		width = m.cfg.MaxResolutionWidth
	}
	if height == 0 || height > m.cfg.MaxResolutionHeight {
		height = m.cfg.MaxResolutionHeight
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &streamSession{
		key:      k,
		cameraID: cam.ID,
		quality:  q,
		width:    width,
		height:   height,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.sessions.Store(k, sess)

	conn, err := m.connector.Open(sessCtx, rtspURL)
	if err != nil {
		cancel()
		m.sessions.Delete(k)
		return apperrors.Wrap(apperrors.KindConnectivity, "stream.StartStream", "failed to open capture session", err)
	}

	go m.readerTask(sessCtx, sess, conn)

	cam.Active = true
	cam.Online = true
	cam.Streaming = true
	cam.LastSeen = m.clock.Now()
	cam.Status = model.CameraStatusActive
	if m.store != nil {
		_ = m.store.UpdateCamera(ctx, cam)
	}

	return nil
}

// readerTask repeatedly reads a frame, writes it to the latest-frame slot,
// paces to the configured target FPS, and terminates the stream after
// ConsecutiveFailureMax failures in a row.
func (m *Manager) readerTask(ctx context.Context, sess *streamSession, conn Session) {
	defer close(sess.done)
	defer conn.Close()

	limiter := rate.NewLimiter(rate.Limit(m.cfg.TargetFPS), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		readCtx, cancel := context.WithTimeout(ctx, m.cfg.ReadTimeout)
		frame, err := conn.ReadFrame(readCtx)
		cancel()

		if err != nil || len(frame) == 0 {
			n := atomic.AddInt32(&sess.consecutiveFail, 1)
			if int(n) > m.cfg.ConsecutiveFailureMax {
				m.logger.WithField("camera_id", sess.cameraID).Warn("stream reader exceeded consecutive failure threshold")
				m.markError(sess)
				return
			}
			continue
		}

		atomic.StoreInt32(&sess.consecutiveFail, 0)
		atomic.AddInt64(&sess.frameCount, 1)
		sess.slot.set(frame, m.clock.Now())
	}
}

func (m *Manager) markError(sess *streamSession) {
	m.sessions.Delete(sess.key)
	if m.store == nil {
		return
	}
	cam, err := m.store.GetCamera(context.Background(), sess.cameraID)
	if err != nil {
		return
	}
	cam.Status = model.CameraStatusError
	cam.Streaming = false
	_ = m.store.UpdateCamera(context.Background(), cam)
}

// StopStream releases the capture, clears the slot, and marks the stream
// not-streaming. Idempotent.
func (m *Manager) StopStream(ctx context.Context, cameraID string, q model.Quality) error {
	k := key(cameraID, q)
	mu := m.keyMutex(k)
	mu.Lock()
	defer mu.Unlock()

	v, ok := m.sessions.LoadAndDelete(k)
	if !ok {
		return nil
	}
	sess := v.(*streamSession)
	sess.cancel()
	<-sess.done

	if m.store != nil {
		if cam, err := m.store.GetCamera(ctx, cameraID); err == nil {
			cam.Streaming = false
			_ = m.store.UpdateCamera(ctx, cam)
		}
	}
	return nil
}

// GetFrame returns the current latest-frame slot value; the bool is false
// when no frame has arrived yet (absent).
func (m *Manager) GetFrame(cameraID string, q model.Quality) ([]byte, bool) {
	v, ok := m.sessions.Load(key(cameraID, q))
	if !ok {
		return nil, false
	}
	frame, _ := v.(*streamSession).slot.get()
	return frame, len(frame) > 0
}

// RecoverStream performs stop + probe + start with a 2s settling delay.
func (m *Manager) RecoverStream(ctx context.Context, cam *model.Camera, q model.Quality) error {
	_ = m.StopStream(ctx, cam.ID, q)
	m.clock.Sleep(2 * time.Second)
	if err := m.StartStream(ctx, cam, q); err != nil {
		cam.Status = model.CameraStatusError
		if m.store != nil {
			_ = m.store.UpdateCamera(ctx, cam)
		}
		return err
	}
	v, ok := m.sessions.Load(key(cam.ID, q))
	if ok {
		atomic.AddInt64(&v.(*streamSession).reconnectCount, 1)
	}
	return nil
}

// Health is the reported state of one stream key.
type Health struct {
	Status         Status
	LastUpdate     time.Time
	Viewers        int
	FrameCount     int64
	ReconnectCount int64
}

// StreamHealth reports the health classification for one stream key.
func (m *Manager) StreamHealth(cameraID string, q model.Quality) Health {
	v, ok := m.sessions.Load(key(cameraID, q))
	if !ok {
		return Health{Status: StatusInactive}
	}
	sess := v.(*streamSession)
	_, lastUpdate := sess.slot.get()

	status := StatusHealthy
	if lastUpdate.IsZero() || m.clock.Now().Sub(lastUpdate) > UnhealthyAfter {
		status = StatusUnhealthy
	}

	return Health{
		Status:         status,
		LastUpdate:     lastUpdate,
		Viewers:        int(atomic.LoadInt32(&sess.viewers)),
		FrameCount:     atomic.LoadInt64(&sess.frameCount),
		ReconnectCount: atomic.LoadInt64(&sess.reconnectCount),
	}
}

// AddViewer increments the viewer count for a stream key.
func (m *Manager) AddViewer(cameraID string, q model.Quality) {
	if v, ok := m.sessions.Load(key(cameraID, q)); ok {
		atomic.AddInt32(&v.(*streamSession).viewers, 1)
	}
}

// RemoveViewer decrements the viewer count; when it reaches zero the
// stream is stopped (viewer-zero teardown policy).
func (m *Manager) RemoveViewer(ctx context.Context, cameraID string, q model.Quality) {
	v, ok := m.sessions.Load(key(cameraID, q))
	if !ok {
		return
	}
	sess := v.(*streamSession)
	if atomic.AddInt32(&sess.viewers, -1) <= 0 {
		_ = m.StopStream(ctx, cameraID, q)
	}
}

// Resolution returns the resolution observed when the stream was started.
func (m *Manager) Resolution(cameraID string, q model.Quality) (width, height int, ok bool) {
	v, found := m.sessions.Load(key(cameraID, q))
	if !found {
		return 0, 0, false
	}
	sess := v.(*streamSession)
	return sess.width, sess.height, true
}

// IsActive reports whether a reader task is currently running for the key.
func (m *Manager) IsActive(cameraID string, q model.Quality) bool {
	_, ok := m.sessions.Load(key(cameraID, q))
	return ok
}

// ActiveCount reports the number of currently open stream sessions, across
// all cameras and qualities.
func (m *Manager) ActiveCount() int {
	count := 0
	m.sessions.Range(func(_, _ interface{}) bool { count++; return true })
	return count
}
