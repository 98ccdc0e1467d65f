// Package main implements the CCTV capture/recording/archival service entry
// point.
//
// This service manages RTSP camera streams, scheduled and ad-hoc recordings,
// live-view/snapshot delivery, and cloud archival for a fleet of cameras,
// either directly (cameras reachable from this process) or via remote
// capture agents that record on their own host and report back.
//
// Architecture follows the layered approach:
//   - Foundation: Configuration and logging
//   - Core Services: codec probing, RTSP stream manager
//   - Managers: recording manager, upload/retention worker
//   - Business Logic: scheduler (cron-like triggers)
//   - API: HTTP control plane, MJPEG live-view, WebSocket events
//
// The startup sequence follows architectural compliance:
// 1. Load and validate configuration
// 2. Initialize logging with structured output
// 3. Construct the object-store backend per archival configuration
// 4. Construct the codec prober and RTSP stream manager
// 5. Construct the recording manager, wired to the upload worker's
//    completion hook
// 6. Construct the scheduler and start its cron engine
// 7. Start the HTTP control plane
//
// Shutdown stops accepting HTTP connections and then stops the scheduler's
// cron engine. Active recordings, stream readers and in-flight uploads are
// neither stopped nor awaited; they end when the process exits.
//
// Usage: cctv-service [config-path] [-print-config]
// -print-config loads and validates configuration, prints the effective
// merged config as YAML, and exits without starting the service.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/camerarecorder/cctv-service/internal/auth"
	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/codec"
	"github.com/camerarecorder/cctv-service/internal/config"
	"github.com/camerarecorder/cctv-service/internal/httpapi"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/recording"
	"github.com/camerarecorder/cctv-service/internal/schedule"
	"github.com/camerarecorder/cctv-service/internal/store"
	"github.com/camerarecorder/cctv-service/internal/stream"
	"github.com/camerarecorder/cctv-service/internal/upload"
)

func main() {
	// Layer 1: Foundation - Load and validate configuration
	configPath := "config/default.yaml"

	printConfig := false
	for _, arg := range os.Args[1:] {
		if arg == "-print-config" {
			printConfig = true
		} else if !strings.HasPrefix(arg, "-") {
			configPath = arg
		}
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if printConfig {
		out, err := config.DumpEffectiveConfig(cfg)
		if err != nil {
			log.Fatalf("failed to render configuration: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	// Initialize structured logging before anything else can log.
	logger := logging.NewLogger("cctv-service")
	if err := logger.Configure(&logging.LoggingConfig{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		MaxFileSize:    cfg.Logging.MaxFileSize,
		BackupCount:    cfg.Logging.BackupCount,
		ConsoleEnabled: cfg.Logging.ConsoleEnabled,
	}); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	logger.Info("starting CCTV service")

	// Hot-reload the logging section only; other sections require a
	// restart to avoid tearing down live streams and recordings. Configure
	// mutates the same logger instance already handed to every component
	// below, so they all observe the new level/format immediately.
	if err := loader.WatchLoggingConfig(configPath, func(lc config.LoggingConfig) {
		_ = logger.Configure(&logging.LoggingConfig{
			Level:          lc.Level,
			Format:         lc.Format,
			FileEnabled:    lc.FileEnabled,
			FilePath:       lc.FilePath,
			MaxFileSize:    lc.MaxFileSize,
			BackupCount:    lc.BackupCount,
			ConsoleEnabled: lc.ConsoleEnabled,
		})
		logger.Info("logging configuration reloaded")
	}); err != nil {
		logger.WithError(err).Warn("logging hot-reload watch failed, continuing without it")
	}
	defer loader.Close()

	clk := clock.New()
	st := store.NewMemory()

	// Layer 2: Core Services - object-store backend per archival config.
	objs, err := newObjectStore(cfg.Archival)
	if err != nil {
		logger.WithError(err).Fatal("failed to construct object-store backend")
	}

	prober := codec.NewProber(cfg.Media.RecordingBase)
	connector := stream.NewRTSPConnector()
	streamCfg := stream.Config{
		ProbeAttempts:         cfg.Capture.ProbeAttempts,
		ProbeDelay:            cfg.Capture.ProbeDelay,
		MaxResolutionWidth:    cfg.Capture.MaxResolutionWidth,
		MaxResolutionHeight:   cfg.Capture.MaxResolutionHeight,
		TargetFPS:             cfg.Capture.TargetFPS,
		ConsecutiveFailureMax: cfg.Capture.ConsecutiveFailureMax,
		ReadTimeout:           cfg.Capture.ReadTimeout,
	}
	streamMgr := stream.NewManager(streamCfg, connector, st, clk, logger)

	// Layer 3: Managers - upload worker first, so its completion hook can
	// be wired into the recording manager at construction time.
	uploadCfg := upload.Config{
		MaxAttempts:          cfg.Archival.MaxUploadAttempts,
		BackoffBase:          cfg.Archival.UploadBackoffBase,
		MaxConcurrentUploads: int64(cfg.Archival.MaxConcurrentUploads),
		CleanupAfterUpload:   cfg.Archival.CleanupAfterUpload,
		SettleDelay:          2 * time.Second,
	}
	uploader := upload.New(uploadCfg, cfg.Media.MediaRoot, st, objs, clk, logger)

	recCfg := recording.Config{
		ConsecutiveFailureMax: cfg.Recording.ConsecutiveFailureMax,
		MinCompletedBytes:     cfg.Recording.MinCompletedBytes,
		MinCompletedFrames:    cfg.Recording.MinCompletedFrames,
		ReadTimeout:           cfg.Capture.ReadTimeout,
		ContinuousChunk:       cfg.Recording.ContinuousChunk,
		StorageWarnPercent:    cfg.Recording.StorageWarnPercent,
		StorageBlockPercent:   cfg.Recording.StorageBlockPercent,
		CleanupAfterUpload:    cfg.Archival.CleanupAfterUpload,
		MaxUploadAttempts:     cfg.Archival.MaxUploadAttempts,
		UploadBackoffBase:     cfg.Archival.UploadBackoffBase,
	}
	recMgr := recording.NewManager(recCfg, cfg.Media.MediaRoot, st, streamMgr, prober, objs, clk, logger, uploader.OnRecordingCompleted)

	// Layer 4: Business Logic - the cron-like scheduler, driving recMgr.
	schedCfg := schedule.Config{
		MaintenanceInterval: cfg.Scheduler.MaintenanceInterval,
		RetentionSweepTime:  cfg.Scheduler.RetentionSweepTime,
		CloudSyncInterval:   cfg.Scheduler.CloudSyncInterval,
		CloudSyncBatchSize:  cfg.Scheduler.CloudSyncBatchSize,
	}
	sched := schedule.New(schedCfg, cfg.Media.MediaRoot, st, recMgr, objs, clk, logger)

	verifier := auth.NewJWTVerifier(cfg.Security.JWTSecretKey)

	// Layer 5: API - HTTP control plane.
	server := httpapi.New(cfg.Media.MediaRoot, st, streamMgr, recMgr, sched, objs, uploader, verifier, clk, logger).
		WithRateLimit(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	logger.Info("scheduler started")

	uploader.Start(ctx)

	if server.RateLimit != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					server.RateLimit.Sweep(30 * time.Minute)
				}
			}
		}()
	}

	go func() {
		logger.WithField("addr", httpSrv.Addr).Info("HTTP control plane listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	logger.Info("CCTV service started successfully - all components operational")

	<-ctx.Done()
	logger.Info("received shutdown signal, stopping services...")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting new HTTP connections first, then the scheduler (no new
	// recordings get triggered). Recordings, stream readers and uploads
	// still in progress are not stopped or awaited here.
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("error stopping HTTP server")
	} else {
		logger.Info("HTTP server stopped cleanly")
	}

	sched.Stop()
	logger.Info("scheduler stopped")

	logger.Info("CCTV service stopped")
}

// newObjectStore selects the object-store backend named by cfg.Backend.
// BOTH is treated as CLOUD_A for the primary archival path; a second
// mirrored backend is a documented open question (see DESIGN.md).
func newObjectStore(cfg config.ArchivalConfig) (objectstore.Store, error) {
	switch strings.ToUpper(cfg.Backend) {
	case "", "LOCAL":
		return objectstore.NewDisabled(), nil
	case "CLOUD_A", "CLOUD_B", "BOTH":
		return objectstore.NewS3(objectstore.S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			CredentialsPath: cfg.CredentialsPath,
		})
	default:
		return objectstore.NewDisabled(), nil
	}
}
