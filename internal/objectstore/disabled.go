package objectstore

import (
	"context"
	"time"

	"github.com/camerarecorder/cctv-service/internal/apperrors"
)

// Disabled is the backend selected when archival.backend == LOCAL. It is
// always instantiable; Put and URL report a storage-port "backend
// disabled" error so callers (the upload worker) can treat the recording
// as local-only, Exists and Size report the object absent, and Delete is a
// no-op.
type Disabled struct{}

func NewDisabled() *Disabled { return &Disabled{} }

func (d *Disabled) Put(ctx context.Context, key, localPath, contentType string, timeout time.Duration) error {
	return apperrors.New(apperrors.KindStorage, "objectstore.Put", "backend disabled")
}

func (d *Disabled) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func (d *Disabled) Size(ctx context.Context, key string) (int64, bool, error) { return 0, false, nil }

func (d *Disabled) Delete(ctx context.Context, key string) error { return nil }

func (d *Disabled) URL(ctx context.Context, key string, signed bool, ttl time.Duration) (string, error) {
	return "", apperrors.New(apperrors.KindStorage, "objectstore.URL", "backend disabled")
}

var _ Store = (*Disabled)(nil)
