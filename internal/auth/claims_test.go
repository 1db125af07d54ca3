package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

func TestGenerateAndParseAccessToken(t *testing.T) {
	token, err := GenerateAccessToken(&User{Username: "alice", Role: RoleAdmin}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "alice")
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", claims.Role, RoleAdmin)
	}
	if claims.ID == "" {
		t.Error("ID (jti) is empty")
	}
}

func TestGenerateAccessTokenDefaultTTL(t *testing.T) {
	token, err := GenerateAccessToken(&User{Username: "alice", Role: RoleUser}, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != defaultTokenTTL {
		t.Errorf("ttl = %v, want %v", ttl, defaultTokenTTL)
	}
}

func TestParseTokenRejects(t *testing.T) {
	sign := func(c CustomClaims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, c).SignedString(key)
		if err != nil {
			t.Fatalf("SignedString() error = %v", err)
		}
		return s
	}
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Subject:   "alice",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	noSubject := valid
	noSubject.Subject = ""

	good := sign(CustomClaims{RegisteredClaims: valid, Role: RoleUser}, jwt.SigningMethodHS256, []byte(testSecret))

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"garbage", "not-a-valid-jwt", testSecret},
		{"wrong secret", good, "another-secret"},
		{"expired", sign(CustomClaims{RegisteredClaims: expired, Role: RoleUser}, jwt.SigningMethodHS256, []byte(testSecret)), testSecret},
		{"no subject", sign(CustomClaims{RegisteredClaims: noSubject, Role: RoleUser}, jwt.SigningMethodHS256, []byte(testSecret)), testSecret},
		{"unknown role", sign(CustomClaims{RegisteredClaims: valid, Role: "owner"}, jwt.SigningMethodHS256, []byte(testSecret)), testSecret},
		{"wrong algorithm", sign(CustomClaims{RegisteredClaims: valid, Role: RoleUser}, jwt.SigningMethodHS512, []byte(testSecret)), testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
