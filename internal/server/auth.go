package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"todo/internal/models"
)

const principalKey = "principal"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister creates a new account.
func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.sessions.Register(c.Request.Context(), req.Email, req.Password); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"message": "User created successfully."})
}

// handleLogin exchanges credentials for a session token.
func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	token, err := s.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"token": token})
}

// handleMe returns the principal behind the presented token.
func (s *Server) handleMe(c *gin.Context) {
	respondSuccess(c, http.StatusOK, principal(c))
}

// requireAuth rejects requests without a valid bearer token and stores the
// resolved principal on the context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			s.fail(c, models.ErrUnauthenticated)
			return
		}

		p, err := s.sessions.Authenticate(token)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func principal(c *gin.Context) models.Principal {
	return c.MustGet(principalKey).(models.Principal)
}
