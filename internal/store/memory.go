package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/camerarecorder/cctv-service/internal/apperrors"
	"github.com/camerarecorder/cctv-service/internal/model"
)

// Memory is an in-memory Store implementation guarded by a single RWMutex
// per entity map, following the map+mutex bookkeeping style used throughout
// this codebase's device and session tracking.
type Memory struct {
	camerasMu sync.RWMutex
	cameras   map[string]*model.Camera

	schedulesMu sync.RWMutex
	schedules   map[string]*model.RecordingSchedule

	recordingsMu sync.RWMutex
	recordings   map[string]*model.Recording

	transfersMu sync.RWMutex
	transfers   map[string]*model.TransferJob

	sessionsMu sync.RWMutex
	sessions   map[string]*model.LiveStreamSession

	clientsMu sync.RWMutex
	clients   map[string]*model.LocalRecordingClient
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cameras:    make(map[string]*model.Camera),
		schedules:  make(map[string]*model.RecordingSchedule),
		recordings: make(map[string]*model.Recording),
		transfers:  make(map[string]*model.TransferJob),
		sessions:   make(map[string]*model.LiveStreamSession),
		clients:    make(map[string]*model.LocalRecordingClient),
	}
}

var errNotFound = fmt.Errorf("not found")

// --- Cameras ---

func (m *Memory) CreateCamera(ctx context.Context, c *model.Camera) error {
	m.camerasMu.Lock()
	defer m.camerasMu.Unlock()
	cp := *c
	m.cameras[c.ID] = &cp
	return nil
}

func (m *Memory) GetCamera(ctx context.Context, id string) (*model.Camera, error) {
	m.camerasMu.RLock()
	defer m.camerasMu.RUnlock()
	c, ok := m.cameras[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.KindPersistence, "GetCamera", "camera not found: "+id, errNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) UpdateCamera(ctx context.Context, c *model.Camera) error {
	m.camerasMu.Lock()
	defer m.camerasMu.Unlock()
	if _, ok := m.cameras[c.ID]; !ok {
		return apperrors.Wrap(apperrors.KindPersistence, "UpdateCamera", "camera not found: "+c.ID, errNotFound)
	}
	cp := *c
	cp.UpdatedAt = time.Now()
	m.cameras[c.ID] = &cp
	return nil
}

func (m *Memory) DeleteCamera(ctx context.Context, id string) error {
	m.camerasMu.Lock()
	delete(m.cameras, id)
	m.camerasMu.Unlock()

	// Cascade: delete the camera's recordings and schedules, and mark its
	// sessions inactive.
	m.recordingsMu.Lock()
	for rid, r := range m.recordings {
		if r.CameraID == id {
			delete(m.recordings, rid)
		}
	}
	m.recordingsMu.Unlock()

	m.schedulesMu.Lock()
	for sid, s := range m.schedules {
		if s.CameraID == id {
			delete(m.schedules, sid)
		}
	}
	m.schedulesMu.Unlock()

	m.sessionsMu.Lock()
	for _, s := range m.sessions {
		if s.CameraID == id {
			s.Active = false
		}
	}
	m.sessionsMu.Unlock()

	return nil
}

func (m *Memory) ListCameras(ctx context.Context, f CameraFilter) ([]*model.Camera, error) {
	m.camerasMu.RLock()
	defer m.camerasMu.RUnlock()
	var out []*model.Camera
	for _, c := range m.cameras {
		if f.ActiveOnly && !c.Active {
			continue
		}
		if f.PublicOnly && !c.Visible {
			continue
		}
		if f.RecordingMode != "" && c.RecordingMode != f.RecordingMode {
			continue
		}
		if f.AssignedAgent != "" && c.AssignedAgent != f.AssignedAgent {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Schedules ---

func (m *Memory) CreateSchedule(ctx context.Context, s *model.RecordingSchedule) error {
	m.schedulesMu.Lock()
	defer m.schedulesMu.Unlock()
	cp := *s
	m.schedules[s.ID] = &cp
	return nil
}

func (m *Memory) GetSchedule(ctx context.Context, id string) (*model.RecordingSchedule, error) {
	m.schedulesMu.RLock()
	defer m.schedulesMu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.KindPersistence, "GetSchedule", "schedule not found: "+id, errNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) UpdateSchedule(ctx context.Context, s *model.RecordingSchedule) error {
	m.schedulesMu.Lock()
	defer m.schedulesMu.Unlock()
	if _, ok := m.schedules[s.ID]; !ok {
		return apperrors.Wrap(apperrors.KindPersistence, "UpdateSchedule", "schedule not found: "+s.ID, errNotFound)
	}
	cp := *s
	cp.UpdatedAt = time.Now()
	m.schedules[s.ID] = &cp
	return nil
}

func (m *Memory) DeleteSchedule(ctx context.Context, id string) error {
	m.schedulesMu.Lock()
	defer m.schedulesMu.Unlock()
	delete(m.schedules, id)
	return nil
}

func (m *Memory) ListSchedules(ctx context.Context, f ScheduleFilter) ([]*model.RecordingSchedule, error) {
	m.schedulesMu.RLock()
	defer m.schedulesMu.RUnlock()
	var out []*model.RecordingSchedule
	for _, s := range m.schedules {
		if f.CameraID != "" && s.CameraID != f.CameraID {
			continue
		}
		if f.ActiveOnly && !s.Active {
			continue
		}
		if f.Kind != "" && s.Kind != f.Kind {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Recordings ---

func (m *Memory) CreateRecording(ctx context.Context, r *model.Recording) error {
	m.recordingsMu.Lock()
	defer m.recordingsMu.Unlock()
	cp := *r
	m.recordings[r.ID] = &cp
	return nil
}

func (m *Memory) GetRecording(ctx context.Context, id string) (*model.Recording, error) {
	m.recordingsMu.RLock()
	defer m.recordingsMu.RUnlock()
	r, ok := m.recordings[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.KindPersistence, "GetRecording", "recording not found: "+id, errNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) UpdateRecording(ctx context.Context, r *model.Recording) error {
	m.recordingsMu.Lock()
	defer m.recordingsMu.Unlock()
	if _, ok := m.recordings[r.ID]; !ok {
		return apperrors.Wrap(apperrors.KindPersistence, "UpdateRecording", "recording not found: "+r.ID, errNotFound)
	}
	cp := *r
	cp.UpdatedAt = time.Now()
	m.recordings[r.ID] = &cp
	return nil
}

func (m *Memory) DeleteRecording(ctx context.Context, id string) error {
	m.recordingsMu.Lock()
	defer m.recordingsMu.Unlock()
	delete(m.recordings, id)
	return nil
}

func (m *Memory) ListRecordings(ctx context.Context, f RecordingFilter) ([]*model.Recording, error) {
	m.recordingsMu.RLock()
	defer m.recordingsMu.RUnlock()
	var out []*model.Recording
	for _, r := range m.recordings {
		if f.CameraID != "" && r.CameraID != f.CameraID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.StorageType != "" && r.StorageType != f.StorageType {
			continue
		}
		if !f.After.IsZero() && r.Start.Before(f.After) {
			continue
		}
		if !f.Before.IsZero() && r.Start.After(f.Before) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

func (m *Memory) LatestRecording(ctx context.Context, cameraID string) (*model.Recording, error) {
	recs, err := m.ListRecordings(ctx, RecordingFilter{CameraID: cameraID})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func (m *Memory) ActiveRecording(ctx context.Context, cameraID string) (*model.Recording, error) {
	m.recordingsMu.RLock()
	defer m.recordingsMu.RUnlock()
	for _, r := range m.recordings {
		if r.CameraID == cameraID && r.Status == model.RecordingActive {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

// --- TransferJobs ---

func (m *Memory) CreateTransferJob(ctx context.Context, t *model.TransferJob) error {
	m.transfersMu.Lock()
	defer m.transfersMu.Unlock()
	cp := *t
	m.transfers[t.ID] = &cp
	return nil
}

func (m *Memory) GetTransferJob(ctx context.Context, id string) (*model.TransferJob, error) {
	m.transfersMu.RLock()
	defer m.transfersMu.RUnlock()
	t, ok := m.transfers[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.KindPersistence, "GetTransferJob", "transfer job not found: "+id, errNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) GetTransferJobByRecording(ctx context.Context, recordingID string) (*model.TransferJob, error) {
	m.transfersMu.RLock()
	defer m.transfersMu.RUnlock()
	for _, t := range m.transfers {
		if t.RecordingID == recordingID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperrors.Wrap(apperrors.KindPersistence, "GetTransferJobByRecording", "no transfer job for recording: "+recordingID, errNotFound)
}

func (m *Memory) UpdateTransferJob(ctx context.Context, t *model.TransferJob) error {
	m.transfersMu.Lock()
	defer m.transfersMu.Unlock()
	if _, ok := m.transfers[t.ID]; !ok {
		return apperrors.Wrap(apperrors.KindPersistence, "UpdateTransferJob", "transfer job not found: "+t.ID, errNotFound)
	}
	cp := *t
	cp.UpdatedAt = time.Now()
	m.transfers[t.ID] = &cp
	return nil
}

func (m *Memory) ListTransferJobs(ctx context.Context, states ...model.TransferState) ([]*model.TransferJob, error) {
	m.transfersMu.RLock()
	defer m.transfersMu.RUnlock()
	want := make(map[model.TransferState]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	var out []*model.TransferJob
	for _, t := range m.transfers {
		if len(want) > 0 && !want[t.State] {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Sessions ---

func (m *Memory) CreateSession(ctx context.Context, s *model.LiveStreamSession) error {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *Memory) GetSessionByToken(ctx context.Context, token string) (*model.LiveStreamSession, error) {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	for _, s := range m.sessions {
		if s.Token == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperrors.Wrap(apperrors.KindPersistence, "GetSessionByToken", "session not found", errNotFound)
}

func (m *Memory) UpdateSession(ctx context.Context, s *model.LiveStreamSession) error {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return apperrors.Wrap(apperrors.KindPersistence, "UpdateSession", "session not found: "+s.ID, errNotFound)
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *Memory) ListActiveSessions(ctx context.Context, cameraID string) ([]*model.LiveStreamSession, error) {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	var out []*model.LiveStreamSession
	for _, s := range m.sessions {
		if !s.Active {
			continue
		}
		if cameraID != "" && s.CameraID != cameraID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) DeactivateCameraSessions(ctx context.Context, cameraID string) error {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	now := time.Now()
	for _, s := range m.sessions {
		if s.CameraID == cameraID && s.Active {
			s.Active = false
			s.End = now
		}
	}
	return nil
}

// --- Clients ---

func (m *Memory) CreateClient(ctx context.Context, c *model.LocalRecordingClient) error {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *Memory) GetClientByToken(ctx context.Context, token string) (*model.LocalRecordingClient, error) {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	for _, c := range m.clients {
		if c.BearerToken == token {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.Wrap(apperrors.KindAuth, "GetClientByToken", "unknown bearer token", errNotFound)
}

func (m *Memory) UpdateClient(ctx context.Context, c *model.LocalRecordingClient) error {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if _, ok := m.clients[c.ID]; !ok {
		return apperrors.Wrap(apperrors.KindPersistence, "UpdateClient", "client not found: "+c.ID, errNotFound)
	}
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *Memory) ListClients(ctx context.Context) ([]*model.LocalRecordingClient, error) {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	var out []*model.LocalRecordingClient
	for _, c := range m.clients {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Store = (*Memory)(nil)
