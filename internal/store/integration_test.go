package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// requireDocker fails hard if Docker is missing.
// We wrap this in a function to recover from panics inside testcontainers (e.g. socket not found)
func requireDocker(t *testing.T, ctx context.Context) {
	t.Helper()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}
}

// TestPostgresIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	requireDocker(t, ctx)

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("rollcall_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Initialize backend (runs migrations)
	backend, err := NewPostgres(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	s, err := Open(ctx, backend, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close(ctx)

	if s.Len() != 0 {
		t.Fatalf("Expected empty store, got %d entries", s.Len())
	}

	for i, label := range []string{"alice", "bob", "alice"} {
		if _, err := s.Append(ctx, label, descriptor(float32(i))); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	entries, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[2].Label != "alice" || entries[2].Descriptors[0][0] != 2 {
		t.Errorf("Insertion order not preserved: %+v", entries[2].Label)
	}

	// Reset drops and recreates the table
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	entries, err = s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll after reset failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected 0 entries after reset, got %d", len(entries))
	}
}

// TestMinioIntegration exercises the object slot against a real MinIO container.
func TestMinioIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	requireDocker(t, ctx)

	container, err := tcminio.Run(ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start minio container: %v", err)
	}
	defer container.Terminate(ctx)

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get endpoint: %v", err)
	}

	slot, err := NewMinioSlot(ctx, MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "rollcall",
		Object:    "enrollments.json",
	})
	if err != nil {
		t.Fatalf("NewMinioSlot failed: %v", err)
	}

	s, err := Open(ctx, NewSlotBackend(slot), nil)
	if err != nil {
		t.Fatalf("Open on empty bucket failed: %v", err)
	}
	if _, err := s.Append(ctx, "alice", descriptor(0.5)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := NewSlotBackend(slot).Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Label != "alice" {
		t.Errorf("Unexpected entries: %+v", entries)
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
