package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/store"
)

// registerMaintenance wires the scheduler's own three maintenance jobs:
// hourly once-scan, daily retention sweep, and the 30-minute cloud sync
// reconciliation pass.
func (s *Scheduler) registerMaintenance(ctx context.Context) {
	hourlySpec := fmt.Sprintf("0 0 */%d * * *", maxInt(1, int(s.cfg.MaintenanceInterval/time.Hour)))
	s.cron.AddFunc(hourlySpec, func() { s.scanExpiredOnceSchedules(context.Background()) })

	if h, m, sec, ok := parseHMS(s.cfg.RetentionSweepTime); ok {
		spec := fmt.Sprintf("%d %d %d * * *", sec, m, h)
		s.cron.AddFunc(spec, func() { s.retentionSweep(context.Background()) })
	}

	syncMinutes := maxInt(1, int(s.cfg.CloudSyncInterval/time.Minute))
	syncSpec := fmt.Sprintf("0 */%d * * * *", syncMinutes)
	s.cron.AddFunc(syncSpec, func() { s.syncRecordingsToCloud(context.Background()) })
}

func parseHMS(hms string) (h, m, sec int, ok bool) {
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	ss, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return hh, mm, ss, true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// scanExpiredOnceSchedules deactivates active "once" schedules whose
// scheduled moment has passed with no running recording linked to them.
func (s *Scheduler) scanExpiredOnceSchedules(ctx context.Context) {
	scheds, err := s.store.ListSchedules(ctx, store.ScheduleFilter{ActiveOnly: true, Kind: model.ScheduleOnce})
	if err != nil {
		return
	}
	now := s.clk.Now()
	for _, sched := range scheds {
		if sched.StartDate == nil {
			continue
		}
		fireAt := combine(*sched.StartDate, sched.StartTime)
		if !now.After(fireAt) {
			continue
		}
		if s.rec.IsRecording(sched.CameraID) {
			continue
		}
		sched.Active = false
		_ = s.store.UpdateSchedule(ctx, sched)
		s.RemoveSchedule(sched.ID)
	}
}

// retentionSweep deletes completed recordings older than each camera's
// configured retention window, both the backing file and the row.
func (s *Scheduler) retentionSweep(ctx context.Context) {
	cams, err := s.store.ListCameras(ctx, store.CameraFilter{})
	if err != nil {
		return
	}
	now := s.clk.Now()
	for _, cam := range cams {
		if cam.MaxRecordHours <= 0 {
			continue
		}
		cutoff := now.Add(-time.Duration(cam.MaxRecordHours) * time.Hour)
		recs, err := s.store.ListRecordings(ctx, store.RecordingFilter{CameraID: cam.ID, Status: model.RecordingCompleted, Before: cutoff})
		if err != nil {
			continue
		}
		for _, rec := range recs {
			s.purgeRecording(ctx, rec)
		}
	}
}

func (s *Scheduler) purgeRecording(ctx context.Context, rec *model.Recording) {
	if rec.StorageType == model.StorageCloud && s.objs != nil {
		_ = s.objs.Delete(ctx, rec.FilePath)
	} else {
		_ = os.Remove(filepath.Join(s.mediaRoot, rec.FilePath))
	}
	_ = s.store.DeleteRecording(ctx, rec.ID)
}

// syncRecordingsToCloud picks up to CloudSyncBatchSize local-only completed
// recordings and attempts one upload each, skipping any whose linked
// TransferJob is already in-flight or finished — the race guard called for
// by the specification's open question on storage_type double-uploads.
func (s *Scheduler) syncRecordingsToCloud(ctx context.Context) {
	if s.objs == nil {
		return
	}
	recs, err := s.store.ListRecordings(ctx, store.RecordingFilter{Status: model.RecordingCompleted, StorageType: model.StorageLocal})
	if err != nil {
		return
	}

	count := 0
	for _, rec := range recs {
		if count >= s.cfg.CloudSyncBatchSize {
			break
		}
		if strings.HasSuffix(rec.FilePath, ".tmp") {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.mediaRoot, rec.FilePath)); err != nil {
			continue
		}
		if tj, err := s.store.GetTransferJobByRecording(ctx, rec.ID); err == nil {
			switch tj.State {
			case model.TransferUploading, model.TransferCompleted, model.TransferCleanupPending, model.TransferCleanupCompleted:
				continue
			}
		}

		count++
		s.uploadOne(ctx, rec)
	}
}

func (s *Scheduler) uploadOne(ctx context.Context, rec *model.Recording) {
	localPath := filepath.Join(s.mediaRoot, rec.FilePath)
	key := filepath.ToSlash(filepath.Join("recordings", rec.CameraID, s.clk.Now().Format("20060102"), filepath.Base(localPath)))
	contentType := "video/mp4"
	if err := s.objs.Put(ctx, key, localPath, contentType, 15*time.Minute); err != nil {
		s.logger.WithError(err).WithField("recording_id", rec.ID).Warn("background cloud sync upload failed")
		return
	}

	rec.StorageType = model.StorageCloud
	rec.FilePath = key
	_ = s.store.UpdateRecording(ctx, rec)

	if exists, _ := s.objs.Exists(ctx, key); exists {
		_ = os.Remove(localPath)
	}
}
