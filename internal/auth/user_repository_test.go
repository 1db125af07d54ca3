package auth

import (
	"context"
	"errors"
	"testing"
)

func TestUserRepositoryCreateAndGet(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	created := seedTestUser(t, repo, "alice", RoleAdmin)
	if created.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}

	got, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", got.Role, RoleAdmin)
	}
	if got.PasswordHash != created.PasswordHash {
		t.Error("PasswordHash was not stored")
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestUserRepositoryDuplicate(t *testing.T) {
	repo := testRepo(t)
	seedTestUser(t, repo, "alice", RoleUser)

	err := repo.Create(context.Background(), &User{Username: "alice", PasswordHash: "x", Role: RoleUser})
	if !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("Create() error = %v, want ErrUsernameExists", err)
	}
	if got, want := err.Error(), "Username alice is taken"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUserRepositoryNotFound(t *testing.T) {
	repo := testRepo(t)

	if _, err := repo.GetByUsername(context.Background(), "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepositoryCount(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if n, err := repo.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count() = %d, %v, want 0, nil", n, err)
	}
	seedTestUser(t, repo, "alice", RoleUser)
	seedTestUser(t, repo, "bob", RoleUser)
	if n, err := repo.Count(ctx); err != nil || n != 2 {
		t.Errorf("Count() = %d, %v, want 2, nil", n, err)
	}
}
