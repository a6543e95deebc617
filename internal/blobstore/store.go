package blobstore

import (
	"context"
	"time"
)

type PutResult struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Store is the object-storage contract the pipeline consumes. Production
// deployments put S3 or GCS behind it; the filesystem implementation below
// keeps local development and tests self-contained.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (PutResult, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
