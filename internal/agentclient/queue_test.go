package agentclient

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusQueuePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	q, err := NewStatusQueue(path, 5)
	require.NoError(t, err)
	require.NoError(t, q.Push(statusUpdate{RecordingID: "rec-1", NewStatus: "completed"}))
	require.Equal(t, 1, q.Len())

	reloaded, err := NewStatusQueue(path, 5)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())
}

func TestStatusQueueDrainRequeuesOnFailureAndDropsAfterMaxAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	q, err := NewStatusQueue(path, 2)
	require.NoError(t, err)
	require.NoError(t, q.Push(statusUpdate{RecordingID: "rec-1"}))

	q.Drain(func(u statusUpdate) error { return errors.New("network down") })
	require.Equal(t, 1, q.Len())

	q.Drain(func(u statusUpdate) error { return errors.New("network still down") })
	require.Equal(t, 0, q.Len(), "update should be dropped once attempts reach maxAttempts")
}

func TestStatusQueueDrainSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	q, err := NewStatusQueue(path, 5)
	require.NoError(t, err)
	require.NoError(t, q.Push(statusUpdate{RecordingID: "rec-1"}))

	var delivered []statusUpdate
	q.Drain(func(u statusUpdate) error {
		delivered = append(delivered, u)
		return nil
	})
	require.Len(t, delivered, 1)
	require.Equal(t, 0, q.Len())
}
