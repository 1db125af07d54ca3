package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for a generated password.
const seedPasswordBytes = 16

// SeedAdmin creates the admin account on first boot if it does not exist.
// With an empty password a random one is generated and logged; it should be
// changed immediately. Returns the generated password, or "" when seeding
// was skipped or the password was supplied.
func SeedAdmin(ctx context.Context, users UserRepository, username, password string, logger *slog.Logger) (string, error) {
	_, err := users.GetByUsername(ctx, username)
	if err == nil {
		logger.Info("admin account exists, skipping seed", "username", username)
		return "", nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return "", fmt.Errorf("looking up admin account: %w", err)
	}

	generated := ""
	if password == "" {
		b := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(b)
		generated = password
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}
	if err := users.Create(ctx, &User{Username: username, PasswordHash: hash, Role: RoleAdmin}); err != nil {
		return "", fmt.Errorf("creating admin account: %w", err)
	}

	if generated != "" {
		logger.Warn("admin account created",
			"username", username,
			"password", generated,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("admin account created", "username", username)
	}
	return generated, nil
}
