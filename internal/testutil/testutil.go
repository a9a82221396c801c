// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/projectdesk/projectdesk/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// TruncateProjectStore empties the project and settings tables.
// Migrations must already have been applied.
func TruncateProjectStore(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "TRUNCATE projects, settings"); err != nil {
		return fmt.Errorf("truncate project store: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// DropMongoDatabase drops a throwaway credential store database.
func DropMongoDatabase(ctx context.Context, db *mongo.Database) error {
	return db.Drop(ctx)
}

// UniqueName returns a name that does not collide across test runs.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, ulid.Make().String())
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestProject creates a test project with sensible defaults.
func NewTestProject(t testing.TB, ownerID, name string) *model.Project {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Project{
		ID:           ulid.Make().String(),
		Name:         name,
		Description:  name + " description",
		Status:       model.StatusPending,
		AssignedTo:   "Ana",
		DueDate:      now.Add(72 * time.Hour),
		CreationDate: now,
		ManagerName:  "Max",
		OwnerUserID:  ownerID,
	}
}

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, email string) *model.User {
	t.Helper()
	return &model.User{
		Username:     "user-" + email,
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuJ3Zq3v5QH1r5M3n0Xg7sQyTqP1nS6aW",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}
