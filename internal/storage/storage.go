// Package storage uploads backup artifacts and run logs to the single
// remote object store a deployment is configured with: AWS S3 or MinIO.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	ProviderS3    = "s3"
	ProviderMinio = "minio"
)

// Config describes the remote object store.
type Config struct {
	Provider  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// CapacityThreshold is the MinIO usage percentage above which a
	// capacity warning is raised. Zero disables the check.
	CapacityThreshold float64
}

// ObjectInfo is a lightweight representation of a stored object.
type ObjectInfo struct {
	Key          string    `json:"key" yaml:"key"`
	Size         int64     `json:"size" yaml:"size"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
}

// Store is a remote object store.
type Store interface {
	// Upload copies the local file to key, overwriting any existing object.
	Upload(ctx context.Context, localPath, key string) error
	// List returns up to limit objects under prefix, newest first.
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)
	// Test performs a write/read/delete round trip against the bucket.
	Test(ctx context.Context) error
}

// New returns the store selected by cfg.Provider.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderS3:
		return NewS3Store(ctx, cfg)
	case ProviderMinio:
		return NewMinioStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage provider %q (must be %q or %q)", cfg.Provider, ProviderS3, ProviderMinio)
	}
}

// ArtifactKey is the object key of a backup piece: {prefix}/{kind}/{filename}.
func ArtifactKey(prefix, kind, filename string) string {
	return path.Join(prefix, strings.ToLower(kind), filename)
}

// LogKey is the object key of a run log: {prefix}/{filename}.
func LogKey(prefix, filename string) string {
	return path.Join(prefix, filename)
}

func connectionTestKey() string {
	return fmt.Sprintf(".connection-test-%d.txt", time.Now().Unix())
}

const connectionTestContent = "This is a connection test file created by oraback"
