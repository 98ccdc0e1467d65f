// Package model defines the entities of the CCTV data model: cameras,
// recording schedules, recordings, transfer jobs, live-stream sessions and
// local recording clients (remote agents), together with the invariants
// enumerated in the specification's data model section.
package model

import "time"

// Quality selects which of a camera's RTSP URLs a stream or recording uses.
type Quality string

const (
	QualityMain Quality = "main"
	QualitySub  Quality = "sub"
)

// CameraStatus tracks the coarse lifecycle state of a camera's stream.
type CameraStatus string

const (
	CameraStatusInactive CameraStatus = "inactive"
	CameraStatusActive   CameraStatus = "active"
	CameraStatusError    CameraStatus = "error"
)

// RecordingMode selects whether a camera is captured by the central service
// or by an assigned remote agent (LocalRecordingClient).
type RecordingMode string

const (
	RecordingModeCentral     RecordingMode = "central"
	RecordingModeLocalClient RecordingMode = "local_client"
)

// QualityTier is the camera's configured recording quality.
type QualityTier string

const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
)

// Endpoint is a camera's network location.
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Camera is the top-level entity identifying a single video source.
type Camera struct {
	ID   string
	Name string

	Endpoint Endpoint

	// RTSPURL, if set, is used verbatim. Otherwise it is synthesized from
	// Endpoint and Path at read time (see ResolveRTSPURL).
	RTSPURL    string
	SubRTSPURL string
	Path       string

	AutoRecord     bool
	QualityTier    QualityTier
	MaxRecordHours int // 0 = no retention window

	RecordingMode RecordingMode
	AssignedAgent string // LocalRecordingClient ID, when RecordingMode == local_client

	Visible bool // public-viewable

	Active    bool
	Online    bool
	Streaming bool
	LastSeen  time.Time

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time

	Status CameraStatus
}

// FreshnessWindow is the default window within which LastSeen must fall for
// Online to be considered true.
const FreshnessWindow = 5 * time.Minute

// ResolveRTSPURL returns the effective RTSP URL for the requested quality,
// synthesizing it from host/port/path when no explicit URL was set, and
// falling back from sub to main when sub is requested but absent.
func (c *Camera) ResolveRTSPURL(q Quality) string {
	url := c.RTSPURL
	if q == QualitySub && c.SubRTSPURL != "" {
		url = c.SubRTSPURL
	}
	if url != "" {
		return url
	}
	if c.Endpoint.Host == "" || c.Endpoint.Port == 0 || c.Path == "" {
		return ""
	}
	auth := ""
	if c.Endpoint.Username != "" {
		auth = c.Endpoint.Username
		if c.Endpoint.Password != "" {
			auth += ":" + c.Endpoint.Password
		}
		auth += "@"
	}
	return "rtsp://" + auth + c.Endpoint.Host + ":" + itoa(c.Endpoint.Port) + "/" + c.Path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// IsFresh reports whether LastSeen falls within window of now.
func (c *Camera) IsFresh(now time.Time, window time.Duration) bool {
	if c.LastSeen.IsZero() {
		return false
	}
	return now.Sub(c.LastSeen) <= window
}

// ScheduleKind enumerates the trigger types a RecordingSchedule supports.
type ScheduleKind string

const (
	ScheduleOnce       ScheduleKind = "once"
	ScheduleDaily      ScheduleKind = "daily"
	ScheduleWeekly     ScheduleKind = "weekly"
	ScheduleContinuous ScheduleKind = "continuous"
)

// Weekday mirrors time.Weekday but is exposed so schedule specs can be
// expressed by name ("monday" .. "sunday") as required by §4.5.
type Weekday = time.Weekday

// RecordingSchedule is a time-based trigger bound to one camera.
type RecordingSchedule struct {
	ID       string
	CameraID string
	Name     string

	Kind ScheduleKind

	StartTime time.Duration // time-of-day offset from midnight
	EndTime   time.Duration // time-of-day offset from midnight; may wrap past 24h

	StartDate *time.Time // required for kind=once
	EndDate   *time.Time

	Weekdays map[time.Weekday]bool // required non-empty for kind=weekly

	Active bool

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Duration returns the scheduled recording duration, honoring the overnight
// wrap rule: if EndTime <= StartTime, the window is treated as ending the
// following day.
func (s *RecordingSchedule) Duration() time.Duration {
	if s.EndTime > s.StartTime {
		return s.EndTime - s.StartTime
	}
	return (24*time.Hour - s.StartTime) + s.EndTime
}

// RecordingStatus is the lifecycle state of a Recording; transitions are
// monotone along scheduled -> recording -> {completed, failed, stopped}.
type RecordingStatus string

const (
	RecordingScheduled RecordingStatus = "scheduled"
	RecordingActive    RecordingStatus = "recording"
	RecordingCompleted RecordingStatus = "completed"
	RecordingFailed    RecordingStatus = "failed"
	RecordingStopped   RecordingStatus = "stopped"
)

// StorageType indicates whether a recording's bytes live locally or in the
// object store.
type StorageType string

const (
	StorageLocal StorageType = "local"
	StorageCloud StorageType = "cloud"
)

// Minimum completion thresholds per §3/§4.4.
const (
	MinCompletedFileBytes  = 1000
	MinCompletedFrames     = 10
)

// Recording is a single capture session, local file or uploaded object.
type Recording struct {
	ID         string
	CameraID   string
	ScheduleID string // optional

	Name string

	FilePath    string // relative path, or object-store key after migration
	StorageType StorageType

	FileSize      int64
	FramesWritten int64

	Duration time.Duration
	Start    time.Time
	End      time.Time

	Status RecordingStatus

	Resolution string // "WxH"
	FrameRate  float64
	Codec      string

	ErrorMessage string

	RecordedByClient string // LocalRecordingClient ID, if captured remotely
	UploadStatus     string // "pending", "failed", "" once local-only completed

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsComplete reports whether the recording meets the completion invariant:
// file size and frame count above the configured minimums.
func (r *Recording) IsComplete() bool {
	return r.FileSize > MinCompletedFileBytes && r.FramesWritten > MinCompletedFrames
}

// TransferState is the lifecycle state of a TransferJob.
type TransferState string

const (
	TransferPending           TransferState = "pending"
	TransferUploading         TransferState = "uploading"
	TransferCompleted         TransferState = "completed"
	TransferCleanupPending    TransferState = "cleanup_pending"
	TransferCleanupCompleted  TransferState = "cleanup_completed"
	TransferFailed            TransferState = "failed"
)

// MaxTransferRetries is the default retry ceiling before a TransferJob is
// left in the terminal failed state.
const MaxTransferRetries = 3

// CleanupGracePeriod is how long after upload completion the local file is
// kept before deferred cleanup runs.
const CleanupGracePeriod = 24 * time.Hour

// TransferJob tracks upload and deferred local cleanup for one Recording.
type TransferJob struct {
	ID          string
	RecordingID string

	LocalPath string
	ObjectKey string
	URL       string

	SizeBytes int64

	State TransferState

	ScheduledCleanup time.Time
	RetryCount       int
	// Errors retains the last three attempts' errors for triage; index 0 is
	// the most recent.
	Errors []string

	UploadCompletedAt time.Time
	CleanupCompletedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordError appends an error to the bounded ring buffer kept for triage.
func (t *TransferJob) RecordError(msg string) {
	t.Errors = append([]string{msg}, t.Errors...)
	if len(t.Errors) > 3 {
		t.Errors = t.Errors[:3]
	}
}

// LiveStreamSession represents one active MJPEG viewer.
type LiveStreamSession struct {
	ID        string
	Token     string
	CameraID  string
	Principal string

	Start time.Time
	End   time.Time

	Active bool

	ClientIP  string
	UserAgent string
}

// ClientStatus is the liveness state of a LocalRecordingClient (agent).
type ClientStatus string

const (
	ClientOnline  ClientStatus = "online"
	ClientOffline ClientStatus = "offline"
	ClientError   ClientStatus = "error"
)

// LocalRecordingClient is the identity of a remote capture agent.
type LocalRecordingClient struct {
	ID          string
	Name        string
	BearerToken string

	LastSeen time.Time
	Status   ClientStatus

	AssignedCameras map[string]bool

	FreeDiskGB float64
	SystemInfo map[string]string
}
