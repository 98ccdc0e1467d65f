package config

import (
	"fmt"
	"strings"

	"github.com/camerarecorder/cctv-service/internal/apperrors"
)

func errConfigf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return apperrors.New(apperrors.KindConfig, "config.Load", msg)
}

// wrapConfigErr wraps an underlying error (file I/O, unmarshal failure)
// while preserving it for errors.Unwrap/errors.Is callers.
func wrapConfigErr(message string, err error) error {
	return apperrors.Wrap(apperrors.KindConfig, "config.Load", message, err)
}

// Validate checks cross-field invariants that mapstructure unmarshalling
// cannot enforce on its own.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errConfigf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Capture.TargetFPS <= 0 {
		return errConfigf("capture.target_fps must be positive, got %f", cfg.Capture.TargetFPS)
	}
	if cfg.Capture.MaxResolutionWidth <= 0 || cfg.Capture.MaxResolutionHeight <= 0 {
		return errConfigf("capture.max_resolution_width/height must be positive")
	}
	if cfg.Recording.MinCompletedBytes < 0 || cfg.Recording.MinCompletedFrames < 0 {
		return errConfigf("recording.min_completed_bytes/frames must not be negative")
	}
	if cfg.Recording.StorageWarnPercent <= 0 || cfg.Recording.StorageWarnPercent >= 100 {
		return errConfigf("recording.storage_warn_percent must be between 1 and 99, got %d", cfg.Recording.StorageWarnPercent)
	}
	if cfg.Recording.StorageBlockPercent <= cfg.Recording.StorageWarnPercent || cfg.Recording.StorageBlockPercent > 100 {
		return errConfigf("recording.storage_block_percent must exceed storage_warn_percent and be at most 100")
	}

	backend := strings.ToUpper(cfg.Archival.Backend)
	switch backend {
	case "LOCAL":
		// no credentials required
	case "CLOUD_A", "CLOUD_B", "BOTH":
		if cfg.Archival.Bucket == "" {
			return errConfigf("archival.bucket is required when archival.backend is %q", cfg.Archival.Backend)
		}
		if cfg.Archival.AccessKeyID == "" && cfg.Archival.CredentialsPath == "" {
			return errConfigf("archival.access_key_id or archival.credentials_path is required when archival.backend is %q", cfg.Archival.Backend)
		}
	default:
		return errConfigf("archival.backend must be one of LOCAL, CLOUD_A, CLOUD_B, BOTH, got %q", cfg.Archival.Backend)
	}

	if cfg.Archival.CleanupAfterUpload && cfg.Archival.KeepLocalDays <= 0 {
		return errConfigf("archival.keep_local_days must be positive when cleanup_after_upload is enabled")
	}
	if cfg.Archival.MaxUploadAttempts <= 0 {
		return errConfigf("archival.max_upload_attempts must be positive, got %d", cfg.Archival.MaxUploadAttempts)
	}

	if cfg.Security.RateLimitRPS <= 0 {
		return errConfigf("security.rate_limit_rps must be positive, got %f", cfg.Security.RateLimitRPS)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return errConfigf("logging.level %q is not a recognized level", cfg.Logging.Level)
	}

	return nil
}
