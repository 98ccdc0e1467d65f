// Package main implements the remote capture agent entry point (§4.8): a
// process that runs alongside cameras that are not directly reachable from
// the central service, pulling its assigned schedules and driving its own
// embedded scheduler and recording manager, and reporting completions back
// to the central service through a crash-safe pending-status queue.
//
// Exit codes: 0 on normal shutdown; non-zero on configuration validation
// failure so a process supervisor can distinguish startup misconfiguration
// from a requested stop.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/camerarecorder/cctv-service/internal/agentclient"
	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/config"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/stream"
)

func main() {
	configPath := "config/agent.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	defer loader.Close()

	logger := logging.NewLogger("cctv-agent")
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

	if cfg.Agent.CentralURL == "" || cfg.Agent.BearerToken == "" {
		logger.Fatal("agent.central_url and agent.bearer_token are required")
	}

	agentCfg := agentclient.Config{
		CentralURL:           cfg.Agent.CentralURL,
		BearerToken:          cfg.Agent.BearerToken,
		SchedulePullInterval: cfg.Agent.SchedulePullInterval,
		HeartbeatInterval:    cfg.Agent.HeartbeatInterval,
		PendingQueuePath:     cfg.Agent.PendingQueuePath,
		MaxStatusRetries:     cfg.Agent.MaxStatusRetries,
		MediaRoot:            cfg.Media.MediaRoot,
	}

	connector := stream.NewRTSPConnector()
	objs := objectstore.NewDisabled() // agents hand recordings to the central service; they never archive directly

	a, err := agentclient.New(agentCfg, connector, objs, clock.New(), logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to construct agent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("central_url", cfg.Agent.CentralURL).Info("starting capture agent")
	if err := a.Run(ctx); err != nil {
		logger.WithError(err).Error("agent run loop exited with error")
		os.Exit(1)
	}
	logger.Info("capture agent stopped")
}
