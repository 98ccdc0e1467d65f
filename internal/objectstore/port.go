// Package objectstore implements the object-store port (C1): put/exists/
// size/delete/url against a bucket, with a disabled stub for LOCAL-only
// deployments. The core never imports a backend directly outside this
// package — callers depend on the Store interface.
package objectstore

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Store is the object-store port consumed by the recording and upload
// components.
type Store interface {
	Put(ctx context.Context, key, localPath, contentType string, timeout time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context, key string) (int64, bool, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string, signed bool, ttl time.Duration) (string, error)
}

// DefaultSignedURLTTL is applied when a caller requests a signed URL with
// ttl <= 0.
const DefaultSignedURLTTL = 120 * time.Minute

var contentTypeByExt = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".flv":  "video/x-flv",
}

// ContentTypeForPath derives a content type from a file extension, with a
// fixed fallback of video/mp4 for unrecognised extensions.
func ContentTypeForPath(path string) string {
	if ct, ok := contentTypeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "video/mp4"
}

// clampTTL enforces DefaultSignedURLTTL when ttl is non-positive.
func clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultSignedURLTTL
	}
	return ttl
}

// PutTimeout returns the object-store write timeout for a payload of the
// given size: approximately 30s per MB, clamped to [5m, 15m], per the
// concurrency model's suspension-point budget.
func PutTimeout(sizeBytes int64) time.Duration {
	mb := float64(sizeBytes) / (1024 * 1024)
	d := time.Duration(mb*30) * time.Second
	if d < 5*time.Minute {
		return 5 * time.Minute
	}
	if d > 15*time.Minute {
		return 15 * time.Minute
	}
	return d
}
