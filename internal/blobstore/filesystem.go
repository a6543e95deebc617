package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agendawatch/internal/util"
)

type FilesystemStore struct {
	root string
}

func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := util.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("prepare blob root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) path(key string) string {
	return filepath.Join(s.root, filepath.Clean("/"+key))
}

func (s *FilesystemStore) Put(ctx context.Context, key string, data []byte) (PutResult, error) {
	_ = ctx
	path := s.path(key)
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return PutResult{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-blob-*")
	if err != nil {
		return PutResult{}, fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return PutResult{}, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return PutResult{}, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return PutResult{}, fmt.Errorf("rename blob: %w", err)
	}
	return PutResult{Hash: util.Fingerprint(data), Size: int64(len(data))}, nil
}

func (s *FilesystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return b, nil
}

func (s *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	_ = ctx
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat blob %s: %w", key, err)
}

// PresignedURL on the filesystem store is a plain file URL; the ttl only
// matters for remote backends.
func (s *FilesystemStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	_ = ctx
	_ = ttl
	abs, err := filepath.Abs(s.path(key))
	if err != nil {
		return "", fmt.Errorf("resolve blob path %s: %w", key, err)
	}
	return "file://" + abs, nil
}
