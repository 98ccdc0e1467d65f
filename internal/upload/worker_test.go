package upload

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

func TestUploadWithRetrySucceedsAndCleansUp(t *testing.T) {
	mediaRoot := t.TempDir()
	recPath := "recordings/cam-1/rec.mp4"
	full := filepath.Join(mediaRoot, recPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("0123456789"), 0o644))

	st := store.NewMemory()
	ctx := context.Background()
	rec := &model.Recording{ID: "rec-1", CameraID: "cam-1", FilePath: recPath, FileSize: 10, Status: model.RecordingCompleted, StorageType: model.StorageLocal}
	require.NoError(t, st.CreateRecording(ctx, rec))

	objs := newFakeObjectStore()
	cfg := DefaultConfig()
	cfg.SettleDelay = 0
	w := New(cfg, mediaRoot, st, objs, clock.New(), logging.NewLogger("test"))

	w.uploadWithRetry(ctx, "rec-1")

	got, err := st.GetRecording(ctx, "rec-1")
	require.NoError(t, err)
	require.Equal(t, model.StorageCloud, got.StorageType)

	tj, err := st.GetTransferJobByRecording(ctx, "rec-1")
	require.NoError(t, err)
	require.Equal(t, model.TransferCompleted, tj.State)

	_, statErr := os.Stat(full)
	require.True(t, os.IsNotExist(statErr))
}

func TestCleanupSweepIdempotent(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	clk := clock.NewFake(time.Now())

	tj := &model.TransferJob{ID: "tj-1", RecordingID: "rec-1", LocalPath: "recordings/cam-1/rec.mp4", State: model.TransferCompleted, ScheduledCleanup: clk.Now().Add(-time.Minute)}
	require.NoError(t, st.CreateTransferJob(ctx, tj))

	w := New(DefaultConfig(), t.TempDir(), st, newFakeObjectStore(), clk, logging.NewLogger("test"))

	w.RunCleanupSweep(ctx)
	got, err := st.GetTransferJob(ctx, "tj-1")
	require.NoError(t, err)
	require.Equal(t, model.TransferCleanupCompleted, got.State)

	// second run is a no-op but still idempotent
	w.RunCleanupSweep(ctx)
}
