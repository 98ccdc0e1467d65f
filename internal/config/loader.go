package config

import (
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Loader loads and hot-reloads configuration using Viper, the way the
// rest of this codebase's config subsystem is built.
type Loader struct {
	viper    *viper.Viper
	logger   *logrus.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
}

// NewLoader creates a configuration loader bound to the
// CAMERA_SERVICE_-prefixed environment namespace.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CAMERA_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v, logger: logrus.New()}
}

// Load reads configuration from configPath, applying defaults first and
// validating the result. A missing file is a warning, not a fatal error.
func (l *Loader) Load(configPath string) (*Config, error) {
	l.setDefaults()
	l.viper.SetConfigFile(configPath)

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			l.logger.Warn("configuration file not found, using defaults")
		} else {
			return nil, wrapConfigErr("failed to read config file", err)
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, wrapConfigErr("failed to unmarshal config", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, wrapConfigErr("configuration validation failed", err)
	}

	return &cfg, nil
}

// WatchLoggingConfig registers fsnotify-driven hot reload of the logging
// section only; other sections require a process restart to avoid
// invalidating already-running reader/record tasks mid-flight.
func (l *Loader) WatchLoggingConfig(configPath string, onChange func(LoggingConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	l.watcher = watcher

	if err := watcher.Add(configPath); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := l.Load(configPath)
				if err != nil {
					l.logger.WithError(err).Warn("hot reload: config reload failed, keeping previous config")
					continue
				}
				onChange(cfg.Logging)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.WithError(err).Warn("hot reload: watcher error")
			}
		}
	}()
	return nil
}

// Close releases the fsnotify watcher, if one was started.
func (l *Loader) Close() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

func (l *Loader) setDefaults() {
	l.viper.SetDefault("server.host", "0.0.0.0")
	l.viper.SetDefault("server.port", 8080)
	l.viper.SetDefault("server.read_timeout", "30s")
	l.viper.SetDefault("server.write_timeout", "30s")
	l.viper.SetDefault("server.shutdown_timeout", "30s")
	l.viper.SetDefault("server.max_connections", 200)
	l.viper.SetDefault("server.viewer_grace_period", "0s")

	l.viper.SetDefault("media.media_root", "/opt/cctv/media")
	l.viper.SetDefault("media.recording_base", "/opt/cctv/state")
	l.viper.SetDefault("media.max_recording_mb", 0)

	l.viper.SetDefault("capture.probe_attempts", 5)
	l.viper.SetDefault("capture.probe_delay", "2s")
	l.viper.SetDefault("capture.max_resolution_width", 1920)
	l.viper.SetDefault("capture.max_resolution_height", 1080)
	l.viper.SetDefault("capture.target_fps", 25.0)
	l.viper.SetDefault("capture.consecutive_failure_max", 10)
	l.viper.SetDefault("capture.unhealthy_after", "30s")
	l.viper.SetDefault("capture.read_timeout", "2s")

	l.viper.SetDefault("recording.consecutive_failure_max", 30)
	l.viper.SetDefault("recording.min_completed_bytes", 1000)
	l.viper.SetDefault("recording.min_completed_frames", 10)
	l.viper.SetDefault("recording.continuous_chunk", "60m")
	l.viper.SetDefault("recording.storage_warn_percent", 80)
	l.viper.SetDefault("recording.storage_block_percent", 90)

	l.viper.SetDefault("scheduler.misfire_grace", "300s")
	l.viper.SetDefault("scheduler.maintenance_interval", "1h")
	l.viper.SetDefault("scheduler.retention_sweep_time", "02:00:00")
	l.viper.SetDefault("scheduler.cloud_sync_interval", "30m")
	l.viper.SetDefault("scheduler.cloud_sync_batch_size", 10)

	l.viper.SetDefault("archival.backend", "LOCAL")
	l.viper.SetDefault("archival.cleanup_after_upload", true)
	l.viper.SetDefault("archival.keep_local_days", 1)
	l.viper.SetDefault("archival.signed_url_ttl", "120m")
	l.viper.SetDefault("archival.max_upload_attempts", 3)
	l.viper.SetDefault("archival.upload_backoff_base", "5s")
	l.viper.SetDefault("archival.max_concurrent_uploads", 2)

	l.viper.SetDefault("security.jwt_expiry_hours", 24)
	l.viper.SetDefault("security.rate_limit_rps", 10.0)
	l.viper.SetDefault("security.rate_limit_burst", 20)

	l.viper.SetDefault("agent.schedule_pull_interval", "30s")
	l.viper.SetDefault("agent.heartbeat_interval", "60s")
	l.viper.SetDefault("agent.pending_queue_path", "/opt/cctv/state/pending_status.json")
	l.viper.SetDefault("agent.max_status_retries", 5)

	l.viper.SetDefault("logging.level", "info")
	l.viper.SetDefault("logging.format", "text")
	l.viper.SetDefault("logging.file_enabled", true)
	l.viper.SetDefault("logging.file_path", "/opt/cctv/state/logs/service.log")
	l.viper.SetDefault("logging.max_file_size", 10485760)
	l.viper.SetDefault("logging.backup_count", 5)
	l.viper.SetDefault("logging.console_enabled", true)
}

// GetViper exposes the underlying Viper instance for advanced callers.
func (l *Loader) GetViper() *viper.Viper { return l.viper }

// DumpEffectiveConfig renders cfg back to YAML, independent of how it was
// assembled (file, env overrides, defaults); used by the server's
// -print-config startup flag to let operators inspect the merged result.
func DumpEffectiveConfig(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
