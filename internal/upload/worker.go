// Package upload implements the upload/retention worker (C6):
// per-recording immediate upload dispatched from the recording manager's
// completion hook, bounded concurrency via golang.org/x/sync, and the
// 24-hour deferred local cleanup sweep.
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/camerarecorder/cctv-service/internal/apperrors"
	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/store"
)

// Config tunes retry and concurrency behaviour.
type Config struct {
	MaxAttempts           int
	BackoffBase           time.Duration
	MaxConcurrentUploads  int64
	CleanupAfterUpload    bool
	SettleDelay           time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:          3,
		BackoffBase:          5 * time.Second,
		MaxConcurrentUploads: 2,
		CleanupAfterUpload:   true,
		SettleDelay:          2 * time.Second,
	}
}

// Worker dispatches immediate per-recording uploads and runs the deferred
// cleanup sweep; both share the same bounded semaphore.
type Worker struct {
	cfg       Config
	mediaRoot string
	store     store.Store
	objs      objectstore.Store
	clk       clock.Clock
	logger    *logging.Logger

	sem *semaphore.Weighted
	jobs chan string // recording IDs queued from the completion hook
}

// New constructs an upload worker. Start must be called to begin draining
// the completion-hook channel.
func New(cfg Config, mediaRoot string, st store.Store, objs objectstore.Store, clk clock.Clock, logger *logging.Logger) *Worker {
	return &Worker{
		cfg:       cfg,
		mediaRoot: mediaRoot,
		store:     st,
		objs:      objs,
		clk:       clk,
		logger:    logger.WithField("component", "upload"),
		sem:       semaphore.NewWeighted(cfg.MaxConcurrentUploads),
		jobs:      make(chan string, 64),
	}
}

// OnRecordingCompleted is the bounded-channel hook the recording manager
// invokes from its record task's tail; it never blocks the caller for long
// since the channel is buffered and upload happens on its own goroutine.
func (w *Worker) OnRecordingCompleted(recordingID string) {
	select {
	case w.jobs <- recordingID:
	default:
		w.logger.WithField("recording_id", recordingID).Warn("upload queue full, recording left for background sync")
	}
}

// Start launches the dispatch loop, which runs until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case recID := <-w.jobs:
				go w.uploadWithRetry(ctx, recID)
			}
		}
	}()
}

func (w *Worker) uploadWithRetry(ctx context.Context, recordingID string) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer w.sem.Release(1)

	rec, err := w.store.GetRecording(ctx, recordingID)
	if err != nil || rec.StorageType == model.StorageCloud {
		return
	}

	tj := &model.TransferJob{
		ID:          fmt.Sprintf("tj-%s", recordingID),
		RecordingID: recordingID,
		LocalPath:   rec.FilePath,
		SizeBytes:   rec.FileSize,
		State:       model.TransferPending,
		CreatedAt:   w.clk.Now(),
		UpdatedAt:   w.clk.Now(),
	}
	if existing, err := w.store.GetTransferJobByRecording(ctx, recordingID); err == nil {
		tj = existing
	} else {
		_ = w.store.CreateTransferJob(ctx, tj)
	}

	tj.State = model.TransferUploading
	_ = w.store.UpdateTransferJob(ctx, tj)

	key := objectKey(rec)
	fullPath := filepath.Join(w.mediaRoot, rec.FilePath)
	contentType := objectstore.ContentTypeForPath(rec.FilePath)

	var lastErr error
	for attempt := 0; attempt < w.cfg.MaxAttempts; attempt++ {
		lastErr = w.objs.Put(ctx, key, fullPath, contentType, objectstore.PutTimeout(rec.FileSize))
		if lastErr == nil {
			break
		}
		tj.RecordError(lastErr.Error())
		tj.RetryCount++
		_ = w.store.UpdateTransferJob(ctx, tj)
		if attempt < w.cfg.MaxAttempts-1 {
			backoff := w.cfg.BackoffBase * time.Duration(1<<attempt)
			w.clk.Sleep(backoff)
		}
	}

	if lastErr != nil {
		tj.State = model.TransferFailed
		_ = w.store.UpdateTransferJob(ctx, tj)
		w.logger.WithError(lastErr).WithField("recording_id", recordingID).Warn("upload exhausted retries, leaving local-only")
		return
	}

	rec.StorageType = model.StorageCloud
	rec.FilePath = key
	_ = w.store.UpdateRecording(ctx, rec)

	tj.State = model.TransferCompleted
	tj.ObjectKey = key
	tj.UploadCompletedAt = w.clk.Now()
	tj.ScheduledCleanup = tj.UploadCompletedAt.Add(model.CleanupGracePeriod)
	_ = w.store.UpdateTransferJob(ctx, tj)

	if w.cfg.CleanupAfterUpload {
		w.clk.Sleep(w.cfg.SettleDelay)
		if err := os.Remove(fullPath); err != nil {
			w.logger.WithError(err).WithField("recording_id", recordingID).Debug("local file already removed or unreadable")
		}
	}
}

func objectKey(rec *model.Recording) string {
	return filepath.ToSlash(filepath.Join("recordings", rec.CameraID, rec.ID, filepath.Base(rec.FilePath)))
}

// RunCleanupSweep transitions every completed TransferJob whose
// scheduled-cleanup deadline has passed to cleanup_completed, deleting the
// local file if still present. Idempotent: already-absent files still
// transition the job.
func (w *Worker) RunCleanupSweep(ctx context.Context) {
	jobs, err := w.store.ListTransferJobs(ctx, model.TransferCompleted)
	if err != nil {
		return
	}
	now := w.clk.Now()
	for _, tj := range jobs {
		if now.Before(tj.ScheduledCleanup) {
			continue
		}
		fullPath := filepath.Join(w.mediaRoot, tj.LocalPath)
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			w.logger.WithError(err).WithField("transfer_job_id", tj.ID).Warn("cleanup sweep failed to remove local file")
			continue
		}
		tj.State = model.TransferCleanupCompleted
		tj.CleanupCompletedAt = now
		_ = w.store.UpdateTransferJob(ctx, tj)
	}
}

// ResetRetryCount lets an operator resume a failed TransferJob.
func (w *Worker) ResetRetryCount(ctx context.Context, transferJobID string) error {
	tj, err := w.store.GetTransferJob(ctx, transferJobID)
	if err != nil {
		return err
	}
	if tj.RetryCount >= model.MaxTransferRetries && tj.State != model.TransferFailed {
		return apperrors.New(apperrors.KindPersistence, "upload.ResetRetryCount", "transfer job is not in a failed state")
	}
	tj.RetryCount = 0
	tj.State = model.TransferPending
	return w.store.UpdateTransferJob(ctx, tj)
}
