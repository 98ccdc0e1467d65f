package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContentTypeForPath(t *testing.T) {
	require.Equal(t, "video/mp4", ContentTypeForPath("recording.mp4"))
	require.Equal(t, "video/x-msvideo", ContentTypeForPath("recording.AVI"))
	require.Equal(t, "video/mp4", ContentTypeForPath("recording.unknown"))
}

func TestClampTTL(t *testing.T) {
	require.Equal(t, DefaultSignedURLTTL, clampTTL(0))
	require.Equal(t, DefaultSignedURLTTL, clampTTL(-time.Second))
	require.Equal(t, 5*time.Minute, clampTTL(5*time.Minute))
}

func TestPutTimeout(t *testing.T) {
	require.Equal(t, 5*time.Minute, PutTimeout(1024))
	require.Equal(t, 15*time.Minute, PutTimeout(100*1024*1024))
}

func TestDisabledBackend(t *testing.T) {
	d := NewDisabled()
	ctx := context.Background()

	err := d.Put(ctx, "k", "/tmp/x", "video/mp4", time.Second)
	require.Error(t, err)

	ok, err := d.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, d.Delete(ctx, "k"))
}
