// Package store defines the persistence port (C9): typed CRUD and query
// operations over the entities of the data model. The core never imports a
// concrete database driver — callers plug in whatever backing store fits
// their deployment (the in-memory implementation in this package is the
// reference adapter used by tests and by the remote agent's local cache).
package store

import (
	"context"
	"time"

	"github.com/camerarecorder/cctv-service/internal/model"
)

// CameraFilter narrows ListCameras.
type CameraFilter struct {
	ActiveOnly        bool
	PublicOnly        bool
	AssignedPrincipal string
	RecordingMode     model.RecordingMode
	AssignedAgent     string
}

// RecordingFilter narrows ListRecordings.
type RecordingFilter struct {
	CameraID    string
	Status      model.RecordingStatus
	StorageType model.StorageType
	After       time.Time
	Before      time.Time
}

// ScheduleFilter narrows ListSchedules.
type ScheduleFilter struct {
	CameraID   string
	ActiveOnly bool
	Kind       model.ScheduleKind
}

// CameraStore is the persistence port for Camera rows.
type CameraStore interface {
	CreateCamera(ctx context.Context, c *model.Camera) error
	GetCamera(ctx context.Context, id string) (*model.Camera, error)
	UpdateCamera(ctx context.Context, c *model.Camera) error
	DeleteCamera(ctx context.Context, id string) error
	ListCameras(ctx context.Context, f CameraFilter) ([]*model.Camera, error)
}

// ScheduleStore is the persistence port for RecordingSchedule rows.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s *model.RecordingSchedule) error
	GetSchedule(ctx context.Context, id string) (*model.RecordingSchedule, error)
	UpdateSchedule(ctx context.Context, s *model.RecordingSchedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, f ScheduleFilter) ([]*model.RecordingSchedule, error)
}

// RecordingStore is the persistence port for Recording rows.
type RecordingStore interface {
	CreateRecording(ctx context.Context, r *model.Recording) error
	GetRecording(ctx context.Context, id string) (*model.Recording, error)
	UpdateRecording(ctx context.Context, r *model.Recording) error
	DeleteRecording(ctx context.Context, id string) error
	ListRecordings(ctx context.Context, f RecordingFilter) ([]*model.Recording, error)
	// LatestRecording returns the most recently started recording for a
	// camera, or nil if none exists.
	LatestRecording(ctx context.Context, cameraID string) (*model.Recording, error)
	// ActiveRecording returns the in-progress recording for a camera, if any.
	ActiveRecording(ctx context.Context, cameraID string) (*model.Recording, error)
}

// TransferJobStore is the persistence port for TransferJob rows.
type TransferJobStore interface {
	CreateTransferJob(ctx context.Context, t *model.TransferJob) error
	GetTransferJob(ctx context.Context, id string) (*model.TransferJob, error)
	GetTransferJobByRecording(ctx context.Context, recordingID string) (*model.TransferJob, error)
	UpdateTransferJob(ctx context.Context, t *model.TransferJob) error
	ListTransferJobs(ctx context.Context, states ...model.TransferState) ([]*model.TransferJob, error)
}

// SessionStore is the persistence port for LiveStreamSession rows.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.LiveStreamSession) error
	GetSessionByToken(ctx context.Context, token string) (*model.LiveStreamSession, error)
	UpdateSession(ctx context.Context, s *model.LiveStreamSession) error
	ListActiveSessions(ctx context.Context, cameraID string) ([]*model.LiveStreamSession, error)
	DeactivateCameraSessions(ctx context.Context, cameraID string) error
}

// ClientStore is the persistence port for LocalRecordingClient rows.
type ClientStore interface {
	CreateClient(ctx context.Context, c *model.LocalRecordingClient) error
	GetClientByToken(ctx context.Context, token string) (*model.LocalRecordingClient, error)
	UpdateClient(ctx context.Context, c *model.LocalRecordingClient) error
	ListClients(ctx context.Context) ([]*model.LocalRecordingClient, error)
}

// Store composes the full persistence port consumed by the core.
type Store interface {
	CameraStore
	ScheduleStore
	RecordingStore
	TransferJobStore
	SessionStore
	ClientStore
}
