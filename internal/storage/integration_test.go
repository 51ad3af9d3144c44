package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// These tests start a MinIO container and only run when
// ORABACK_INTEGRATION=1 is set, so CI without Docker skips them.

const (
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
	testBucket    = "oraback-test"
)

func startMinio(t *testing.T) string {
	t.Helper()
	if os.Getenv("ORABACK_INTEGRATION") != "1" {
		t.Skip("set ORABACK_INTEGRATION=1 to run store integration tests")
	}

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     testAccessKey,
				"MINIO_ROOT_PASSWORD": testSecretKey,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Fatalf("failed to start minio container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "9000/tcp")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	endpoint := host + ":" + port.Port()

	m, err := NewMinioStore(Config{Endpoint: endpoint, AccessKey: testAccessKey, SecretKey: testSecretKey, Bucket: testBucket})
	if err != nil {
		t.Fatalf("failed to create minio store: %v", err)
	}
	if err := m.client.MakeBucket(ctx, testBucket, minio.MakeBucketOptions{}); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	return endpoint
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.Test(ctx); err != nil {
		t.Fatalf("connection test failed: %v", err)
	}

	local := filepath.Join(t.TempDir(), "db_backup_FULL_01test")
	if err := os.WriteFile(local, []byte("backup piece"), 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	key := ArtifactKey("oracle_backup/", "FULL", filepath.Base(local))
	if err := store.Upload(ctx, local, key); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	// Re-uploading the same key overwrites.
	if err := store.Upload(ctx, local, key); err != nil {
		t.Fatalf("re-upload failed: %v", err)
	}

	objs, err := store.List(ctx, "oracle_backup/full/", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(objs) != 1 || objs[0].Key != key || objs[0].Size != int64(len("backup piece")) {
		t.Errorf("unexpected listing: %+v", objs)
	}

	if err := store.Upload(ctx, filepath.Join(t.TempDir(), "missing"), "x"); err == nil {
		t.Errorf("expected error uploading a missing file")
	}
}

func TestMinioStore_Integration(t *testing.T) {
	endpoint := startMinio(t)
	store, err := NewMinioStore(Config{Endpoint: endpoint, AccessKey: testAccessKey, SecretKey: testSecretKey, Bucket: testBucket})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	exerciseStore(t, store)

	usage, err := store.Usage(context.Background())
	if err != nil {
		t.Fatalf("usage query failed: %v", err)
	}
	if usage < 0 || usage > 100 {
		t.Errorf("usage out of range: %v", usage)
	}
}

func TestS3Store_Integration(t *testing.T) {
	endpoint := startMinio(t)
	store, err := NewS3Store(context.Background(), Config{
		Endpoint:  endpoint,
		AccessKey: testAccessKey,
		SecretKey: testSecretKey,
		Bucket:    testBucket,
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	exerciseStore(t, store)
}
