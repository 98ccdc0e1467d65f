package store

import (
	"context"
	"testing"

	"github.com/camerarecorder/cctv-service/internal/model"
	"github.com/stretchr/testify/require"
)

func TestMemoryCameraCRUD(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	cam := &model.Camera{ID: "cam-1", Name: "Front", Active: true, Visible: true}
	require.NoError(t, m.CreateCamera(ctx, cam))

	got, err := m.GetCamera(ctx, "cam-1")
	require.NoError(t, err)
	require.Equal(t, "Front", got.Name)

	got.Name = "Front Door"
	require.NoError(t, m.UpdateCamera(ctx, got))

	got2, err := m.GetCamera(ctx, "cam-1")
	require.NoError(t, err)
	require.Equal(t, "Front Door", got2.Name)

	list, err := m.ListCameras(ctx, CameraFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestMemoryCascadeDeleteCamera(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateCamera(ctx, &model.Camera{ID: "cam-1"}))
	require.NoError(t, m.CreateRecording(ctx, &model.Recording{ID: "rec-1", CameraID: "cam-1"}))
	require.NoError(t, m.CreateSchedule(ctx, &model.RecordingSchedule{ID: "sch-1", CameraID: "cam-1"}))

	require.NoError(t, m.DeleteCamera(ctx, "cam-1"))

	_, err := m.GetRecording(ctx, "rec-1")
	require.Error(t, err)
	_, err = m.GetSchedule(ctx, "sch-1")
	require.Error(t, err)
}

func TestMemoryActiveRecordingUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateRecording(ctx, &model.Recording{ID: "rec-1", CameraID: "cam-1", Status: model.RecordingActive}))

	active, err := m.ActiveRecording(ctx, "cam-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, "rec-1", active.ID)

	none, err := m.ActiveRecording(ctx, "cam-2")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestMemoryTransferJobLookupByRecording(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateTransferJob(ctx, &model.TransferJob{ID: "tj-1", RecordingID: "rec-1", State: model.TransferPending}))

	tj, err := m.GetTransferJobByRecording(ctx, "rec-1")
	require.NoError(t, err)
	require.Equal(t, "tj-1", tj.ID)

	jobs, err := m.ListTransferJobs(ctx, model.TransferPending)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestMemoryClientBearerTokenLookup(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateClient(ctx, &model.LocalRecordingClient{ID: "agent-1", BearerToken: "sekret"}))

	c, err := m.GetClientByToken(ctx, "sekret")
	require.NoError(t, err)
	require.Equal(t, "agent-1", c.ID)

	_, err = m.GetClientByToken(ctx, "wrong")
	require.Error(t, err)
}
