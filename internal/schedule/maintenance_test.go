package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/camerarecorder/cctv-service/internal/clock"
	"github.com/camerarecorder/cctv-service/internal/logging"
	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/camerarecorder/cctv-service/internal/objectstore"
	"github.com/camerarecorder/cctv-service/internal/store"
)

type fakeObjectStore struct {
	puts map[string]bool
}

func newFakeObjectStore() *fakeObjectStore { return &fakeObjectStore{puts: make(map[string]bool)} }

func (f *fakeObjectStore) Put(ctx context.Context, key, localPath, contentType string, timeout time.Duration) error {
	f.puts[key] = true
	return nil
}
func (f *fakeObjectStore) Exists(ctx context.Context, key string) (bool, error) { return f.puts[key], nil }
func (f *fakeObjectStore) Size(ctx context.Context, key string) (int64, bool, error) {
	return 0, f.puts[key], nil
}
func (f *fakeObjectStore) Delete(ctx context.Context, key string) error { delete(f.puts, key); return nil }
func (f *fakeObjectStore) URL(ctx context.Context, key string, signed bool, ttl time.Duration) (string, error) {
	return "http://example/" + key, nil
}

// TestRetentionSweepJoinsMediaRoot verifies the daily retention sweep
// resolves rec.FilePath against the scheduler's mediaRoot rather than the
// process cwd before removing the local file.
func TestRetentionSweepJoinsMediaRoot(t *testing.T) {
	mediaRoot := t.TempDir()
	relPath := "recordings/cam-1/rec.mp4"
	full := filepath.Join(mediaRoot, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("data"), 0o644))

	st := store.NewMemory()
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC))

	cam := &model.Camera{ID: "cam-1", Online: true, MaxRecordHours: 1}
	require.NoError(t, st.CreateCamera(ctx, cam))

	rec := &model.Recording{
		ID: "rec-1", CameraID: "cam-1", FilePath: relPath,
		Status: model.RecordingCompleted, StorageType: model.StorageLocal,
		Start: clk.Now().Add(-2 * time.Hour),
		End:   clk.Now().Add(-1*time.Hour - 50*time.Minute),
	}
	require.NoError(t, st.CreateRecording(ctx, rec))

	s := New(DefaultConfig(), mediaRoot, st, &fakeRecorder{}, objectstore.NewDisabled(), clk, logging.NewLogger("test"))
	s.retentionSweep(ctx)

	_, statErr := os.Stat(full)
	require.True(t, os.IsNotExist(statErr), "expected local file under mediaRoot to be removed")

	_, err := st.GetRecording(ctx, "rec-1")
	require.Error(t, err)
}

// TestSyncRecordingsToCloudJoinsMediaRoot verifies the background cloud-sync
// sweep finds and uploads the local file under mediaRoot, not the cwd.
func TestSyncRecordingsToCloudJoinsMediaRoot(t *testing.T) {
	mediaRoot := t.TempDir()
	relPath := "recordings/cam-1/rec.mp4"
	full := filepath.Join(mediaRoot, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("data"), 0o644))

	st := store.NewMemory()
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC))

	rec := &model.Recording{
		ID: "rec-1", CameraID: "cam-1", FilePath: relPath,
		Status: model.RecordingCompleted, StorageType: model.StorageLocal,
	}
	require.NoError(t, st.CreateRecording(ctx, rec))

	objs := newFakeObjectStore()
	s := New(DefaultConfig(), mediaRoot, st, &fakeRecorder{}, objs, clk, logging.NewLogger("test"))
	s.syncRecordingsToCloud(ctx)

	got, err := st.GetRecording(ctx, "rec-1")
	require.NoError(t, err)
	require.Equal(t, model.StorageCloud, got.StorageType)
	require.NotEqual(t, relPath, got.FilePath, "FilePath should now hold the cloud key")
}
