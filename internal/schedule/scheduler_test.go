package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/store"
)

type fakeRecorder struct {
	started  int
	cameraID string
}

func (f *fakeRecorder) StartRecording(ctx context.Context, cam *model.Camera, q model.Quality, durationMinutes int, name, scheduleID string, isScheduled bool) (*model.Recording, error) {
	f.started++
	return &model.Recording{ID: "rec-1", CameraID: cam.ID, Status: model.RecordingActive}, nil
}

func (f *fakeRecorder) IsRecording(cameraID string) bool { return false }

// Cron's own trigger timing runs on the wall clock (robfig/cron does not
// accept an injected clock), so this verifies registration/deactivation
// logic directly rather than waiting on a real timer to fire.
func TestOnceScheduleInThePastDeactivatesImmediately(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 59, 55, 0, time.UTC))

	cam := &model.Camera{ID: "cam-1", Online: true}
	require.NoError(t, st.CreateCamera(ctx, cam))

	past := clk.Now().Add(-time.Hour)
	sched := &model.RecordingSchedule{
		ID: "sch-1", CameraID: "cam-1", Name: "test",
		Kind: model.ScheduleOnce, Active: true,
		StartDate: &past, StartTime: timeOfDay(past), EndTime: timeOfDay(past) + time.Minute,
	}
	require.NoError(t, st.CreateSchedule(ctx, sched))

	rec := &fakeRecorder{}
	s := New(DefaultConfig(), t.TempDir(), st, rec, objectstore.NewDisabled(), clk, logging.NewLogger("test"))

	require.NoError(t, s.RegisterSchedule(ctx, sched))

	got, err := st.GetSchedule(ctx, "sch-1")
	require.NoError(t, err)
	require.False(t, got.Active)
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

func TestDailyScheduleDurationOvernightWrap(t *testing.T) {
	sched := &model.RecordingSchedule{
		StartTime: 23 * time.Hour,
		EndTime:   1 * time.Hour,
	}
	require.Equal(t, 2*time.Hour, sched.Duration())
}

func TestCronSpecWeeklyEmptyWhenNoWeekdaysSet(t *testing.T) {
	require.Equal(t, "", cronSpecWeekly(time.Hour, map[time.Weekday]bool{}))
}
