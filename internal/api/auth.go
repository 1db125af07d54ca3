package api

import (
	"encoding/json"
	"net/http"

	"github.com/nadavnv/smart-home-core/internal/auth"
)

// credentials is the request body for register and login.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentials, error) {
	var c credentials
	err := json.NewDecoder(r.Body).Decode(&c)
	return c, err
}

// handleRegister creates a user-role account and returns its token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	tok, err := s.auth.Register(r.Context(), c.Username, c.Password)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.logger.Info("user registered", "username", c.Username)
	writeJSON(w, http.StatusCreated, tok)
}

// handleLogin authenticates a user and returns a token with their role.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if c.Username == "" || c.Password == "" {
		s.writeDomainError(w, r, auth.ErrMissingCredentials)
		return
	}

	tok, err := s.auth.Login(r.Context(), c.Username, c.Password)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}
