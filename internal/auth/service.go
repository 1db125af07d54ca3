package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMissingCredentials is returned when username or password is empty.
var ErrMissingCredentials = errors.New("Username and password required") //nolint:staticcheck // user-facing message

// Token is the response to a successful register or login.
type Token struct {
	AccessToken string `json:"access_token"`
	Role        Role   `json:"role"`
}

// Service registers accounts and issues tokens.
type Service struct {
	users  UserRepository
	secret string
	ttl    time.Duration
}

// NewService creates an auth service signing tokens with secret.
func NewService(users UserRepository, secret string, ttl time.Duration) *Service {
	return &Service{users: users, secret: secret, ttl: ttl}
}

// Register creates a user-role account and returns its token.
//
// Returns:
//   - *Token: access token and role
//   - error: ErrMissingCredentials, ErrInvalidUsername, *UsernameTakenError
func (s *Service) Register(ctx context.Context, username, password string) (*Token, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{Username: username, PasswordHash: hash, Role: RoleUser}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login verifies credentials and returns a token carrying the stored role.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = VerifyPassword(password, dummyHash) //nolint:errcheck // timing only
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password for %s: %w", username, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// Authenticate parses a bearer token.
func (s *Service) Authenticate(token string) (*CustomClaims, error) {
	return ParseToken(token, s.secret)
}

func (s *Service) issue(user *User) (*Token, error) {
	signed, err := GenerateAccessToken(user, s.secret, s.ttl)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, Role: user.Role}, nil
}
