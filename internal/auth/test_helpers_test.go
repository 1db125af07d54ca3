package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/database"
	_ "github.com/nadavnv/smart-home-core/migrations" // registers embedded schema
)

// testRepo opens a migrated SQLite database in a temp dir.
func testRepo(t *testing.T) *SQLiteUserRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewUserRepository(db.DB)
}

// seedTestUser inserts a user with password "test-password".
func seedTestUser(t *testing.T, repo UserRepository, username string, role Role) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &User{Username: username, PasswordHash: hash, Role: role}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}
