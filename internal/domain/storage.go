package domain

import (
	"context"
	"time"
)

// Storage is a remote location backup artifacts are mirrored to.
type Storage interface {
	Upload(ctx context.Context, localPath string, remoteName string) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, remoteName string) error
	GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error)
}

// MirrorTarget names a Storage for logging.
type MirrorTarget struct {
	Name    string
	Storage Storage
}
