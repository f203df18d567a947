//go:build integration
// +build integration

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	pool, err := Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func TestPostgres_PutLookup(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	reg := NewPostgres(pool)
	if err := reg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if err := reg.Put(ctx, "vtuber-1", "UCaaa"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	owner, err := reg.Lookup(ctx, "UCaaa")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if owner != "vtuber-1" {
		t.Errorf("owner = %s, want vtuber-1", owner)
	}

	// Upsert replaces the owner
	if err := reg.Put(ctx, "vtuber-2", "UCaaa"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	owner, err = reg.Lookup(ctx, "UCaaa")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if owner != "vtuber-2" {
		t.Errorf("owner = %s, want vtuber-2", owner)
	}
}

func TestPostgres_LookupMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	reg := NewPostgres(pool)
	if err := reg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if _, err := reg.Lookup(ctx, "UCmissing"); err != ErrOwnerNotFound {
		t.Errorf("Lookup() error = %v, want ErrOwnerNotFound", err)
	}
}

func TestPostgres_RemoveAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	reg := NewPostgres(pool)
	if err := reg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, ch := range []string{"UCaaa", "UCbbb", "UCccc"} {
		if err := reg.Put(ctx, "owner-"+ch, ch); err != nil {
			t.Fatalf("Put(%s) error = %v", ch, err)
		}
	}

	if err := reg.Remove(ctx, "UCbbb"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	ids, err := reg.ChannelIDs(ctx)
	if err != nil {
		t.Fatalf("ChannelIDs() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Got %d channels, want 2", len(ids))
	}
	for _, id := range ids {
		if id == "UCbbb" {
			t.Error("removed channel still listed")
		}
	}
}
