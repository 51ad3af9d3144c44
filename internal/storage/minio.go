package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore talks to a MinIO deployment.
type MinioStore struct {
	client *minio.Client
	cfg    Config
	admin  *madmin.AdminClient
}

func NewMinioStore(cfg Config) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is not set")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is not set")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Minio client: %w", err)
	}

	return &MinioStore{client: client, cfg: cfg}, nil
}

// Upload streams the file at localPath to key.
func (m *MinioStore) Upload(ctx context.Context, localPath, key string) error {
	if _, err := m.client.FPutObject(ctx, m.cfg.Bucket, key, localPath, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("failed to upload %s to Minio: %w", key, err)
	}
	return nil
}

// List returns objects under prefix sorted by LastModified, most recent first.
func (m *MinioStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	var results []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("error listing object: %w", obj.Err)
		}
		results = append(results, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].LastModified.After(results[j].LastModified)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Test checks the bucket exists and performs a write/read/delete round trip.
func (m *MinioStore) Test(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", m.cfg.Bucket)
	}

	key := connectionTestKey()
	content := []byte(connectionTestContent)
	if _, err := m.client.PutObject(ctx, m.cfg.Bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "text/plain",
	}); err != nil {
		return fmt.Errorf("failed to write test object: %w", err)
	}

	obj, err := m.client.GetObject(ctx, m.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to read test object: %w", err)
	}
	read, err := io.ReadAll(obj)
	obj.Close()
	if err != nil {
		return fmt.Errorf("failed to read test object content: %w", err)
	}
	if !bytes.Equal(read, content) {
		return fmt.Errorf("content mismatch: read content doesn't match written content")
	}

	if err := m.client.RemoveObject(ctx, m.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete test object: %w", err)
	}
	return nil
}

func (m *MinioStore) initAdminClient() error {
	if m.admin != nil {
		return nil
	}
	client, err := madmin.New(m.cfg.Endpoint, m.cfg.AccessKey, m.cfg.SecretKey, m.cfg.UseSSL)
	if err != nil {
		return fmt.Errorf("failed to create Minio admin client: %w", err)
	}
	m.admin = client
	return nil
}

// Usage returns the used percentage of the MinIO deployment's raw capacity.
func (m *MinioStore) Usage(ctx context.Context) (float64, error) {
	if err := m.initAdminClient(); err != nil {
		return 0, err
	}
	info, err := m.admin.StorageInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query Minio storage info: %w", err)
	}
	var total, used uint64
	for _, disk := range info.Disks {
		total += disk.TotalSpace
		used += disk.UsedSpace
	}
	return UsagePercent(used, total)
}

// CheckCapacity returns an error when usage is at or above the configured
// threshold. A zero threshold disables the check.
func (m *MinioStore) CheckCapacity(ctx context.Context) (float64, error) {
	if m.cfg.CapacityThreshold <= 0 {
		return 0, nil
	}
	usage, err := m.Usage(ctx)
	if err != nil {
		return 0, err
	}
	if usage >= m.cfg.CapacityThreshold {
		return usage, fmt.Errorf("Minio storage usage %.1f%% exceeds %.1f%% threshold", usage, m.cfg.CapacityThreshold)
	}
	return usage, nil
}

// UsagePercent converts raw byte counters into a percentage.
func UsagePercent(used, total uint64) (float64, error) {
	if total == 0 {
		return 0, fmt.Errorf("Minio storage reported zero total capacity")
	}
	return (float64(used) / float64(total)) * 100, nil
}

// IsMinio reports whether the configured provider is MinIO.
func (c Config) IsMinio() bool {
	return strings.EqualFold(c.Provider, ProviderMinio)
}
