// Package config defines and loads the CCTV service's configuration,
// following the same viper-backed, mapstructure-tagged layout the rest of
// this codebase's ambient stack uses.
package config

import "time"

// ServerConfig configures the HTTP control-plane and live-stream endpoints.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxConnections  int           `mapstructure:"max_connections"`

	// ViewerGracePeriod is loaded from configuration but nothing reads it:
	// the stream manager tears a stream down as soon as its viewer count
	// reaches zero, whatever this value is.
	ViewerGracePeriod time.Duration `mapstructure:"viewer_grace_period"`
}

// MediaConfig configures local media storage paths.
type MediaConfig struct {
	MediaRoot      string `mapstructure:"media_root"`      // recordings/, snapshots/
	RecordingBase  string `mapstructure:"recording_base"`  // cache/, logs/, agent recordings/pending_uploads
	MaxRecordingMB int64  `mapstructure:"max_recording_mb"`
}

// CaptureConfig configures the RTSP capture/probe behaviour (C3).
type CaptureConfig struct {
	ProbeAttempts         int           `mapstructure:"probe_attempts"`          // default 5
	ProbeDelay            time.Duration `mapstructure:"probe_delay"`             // default 2s
	MaxResolutionWidth    int           `mapstructure:"max_resolution_width"`    // default 1920
	MaxResolutionHeight   int           `mapstructure:"max_resolution_height"`   // default 1080
	TargetFPS             float64       `mapstructure:"target_fps"`              // default 25
	ConsecutiveFailureMax int           `mapstructure:"consecutive_failure_max"` // default 10, stream reader
	UnhealthyAfter        time.Duration `mapstructure:"unhealthy_after"`         // default 30s
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`            // per-frame read timeout, default 2s
}

// RecordingConfig configures recording file lifecycle (C4).
type RecordingConfig struct {
	ConsecutiveFailureMax int     `mapstructure:"consecutive_failure_max"` // default 30
	MinCompletedBytes     int64   `mapstructure:"min_completed_bytes"`     // default 1000
	MinCompletedFrames    int64   `mapstructure:"min_completed_frames"`    // default 10
	ContinuousChunk       time.Duration `mapstructure:"continuous_chunk"`  // default 60m
	StorageWarnPercent    int     `mapstructure:"storage_warn_percent"`    // default 80
	StorageBlockPercent   int     `mapstructure:"storage_block_percent"`   // default 90
}

// SchedulerConfig configures the cron-like trigger engine (C5).
type SchedulerConfig struct {
	MisfireGrace        time.Duration `mapstructure:"misfire_grace"`          // default 300s
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`   // hourly once-scan
	RetentionSweepTime  string        `mapstructure:"retention_sweep_time"`   // "02:00:00" daily retention
	CloudSyncInterval   time.Duration `mapstructure:"cloud_sync_interval"`    // default 30m
	CloudSyncBatchSize  int           `mapstructure:"cloud_sync_batch_size"`  // default 10
}

// ArchivalConfig configures the object-store backend and retention policy
// (C1/C6).
type ArchivalConfig struct {
	Backend string `mapstructure:"backend"` // LOCAL | CLOUD_A | CLOUD_B | BOTH

	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"` // override for S3-compatible stores
	CredentialsPath string `mapstructure:"credentials_path"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	CleanupAfterUpload bool          `mapstructure:"cleanup_after_upload"`
	KeepLocalDays      int           `mapstructure:"keep_local_days"`
	SignedURLTTL       time.Duration `mapstructure:"signed_url_ttl"` // default 120m

	MaxUploadAttempts   int           `mapstructure:"max_upload_attempts"`   // default 3
	UploadBackoffBase   time.Duration `mapstructure:"upload_backoff_base"`   // default 5s
	MaxConcurrentUploads int          `mapstructure:"max_concurrent_uploads"`// default 2
}

// SecurityConfig configures the JWT-based default auth verifier and agent
// bearer-token checks.
type SecurityConfig struct {
	JWTSecretKey   string        `mapstructure:"jwt_secret_key"`
	JWTExpiryHours int           `mapstructure:"jwt_expiry_hours"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// AgentConfig configures the remote-agent client process (C8).
type AgentConfig struct {
	CentralURL       string        `mapstructure:"central_url"`
	BearerToken      string        `mapstructure:"bearer_token"`
	SchedulePullInterval time.Duration `mapstructure:"schedule_pull_interval"` // default 30s
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval"`     // default 60s
	PendingQueuePath     string        `mapstructure:"pending_queue_path"`
	MaxStatusRetries     int           `mapstructure:"max_status_retries"` // default 5
}

// LoggingConfig mirrors the ambient logging configuration.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
	FilePath       string `mapstructure:"file_path"`
	MaxFileSize    int64  `mapstructure:"max_file_size"`
	BackupCount    int    `mapstructure:"backup_count"`
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
}

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Media     MediaConfig     `mapstructure:"media"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Recording RecordingConfig `mapstructure:"recording"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Archival  ArchivalConfig  `mapstructure:"archival"`
	Security  SecurityConfig  `mapstructure:"security"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}
