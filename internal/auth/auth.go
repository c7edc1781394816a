// Package auth registers users, verifies their credentials and issues the
// bearer tokens that gate every task operation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"todo/internal/models"
)

// PasswordHasher turns passwords into salted one-way hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenManager issues and verifies signed session tokens.
type TokenManager interface {
	Issue(p models.Principal) (string, error)
	Verify(token string) (models.Principal, error)
}

// UserStore is the credential store used by Service.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// Service implements registration, login and token authentication.
type Service struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenManager
	logger *slog.Logger

	// dummyHash is compared against when the email is unknown so that both
	// login failure paths do the same work.
	dummyHash string
}

// NewService wires the credential store with the hashing and token capabilities.
func NewService(users UserStore, hasher PasswordHasher, tokens TokenManager, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", models.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	err = s.users.CreateUser(ctx, user)
	if errors.Is(err, models.ErrDuplicateEmail) {
		return models.ErrDuplicateEmail
	}
	if err != nil {
		return err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return nil
}

// Login checks the credentials and returns a session token. Unknown emails
// and wrong passwords fail with the same models.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		_ = s.hasher.Compare(s.dummyHash, password)
		return "", models.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return "", models.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(models.Principal{UserID: user.ID, Email: user.Email})
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to the principal it was issued for.
func (s *Service) Authenticate(token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, models.ErrUnauthenticated
	}
	p, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("token rejected", slog.String("error", err.Error()))
		return models.Principal{}, models.ErrForbidden
	}
	return p, nil
}
