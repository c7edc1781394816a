package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"todo/internal/models"
)

// DefaultTokenTTL is the lifetime of a session token.
const DefaultTokenTTL = time.Hour

type sessionClaims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTManager signs session tokens with HMAC-SHA256.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager returns a manager signing with secret. A non-positive ttl
// falls back to DefaultTokenTTL.
func NewJWTManager(secret []byte, ttl time.Duration) (*JWTManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTManager{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for p expiring after the configured TTL.
func (m *JWTManager) Issue(p models.Principal) (string, error) {
	now := m.now()
	claims := sessionClaims{
		UserID: p.UserID,
		Email:  p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its principal.
func (m *JWTManager) Verify(token string) (models.Principal, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return models.Principal{}, fmt.Errorf("verify token: %w", err)
	}
	if claims.UserID == "" {
		return models.Principal{}, errors.New("verify token: missing user id")
	}
	return models.Principal{UserID: claims.UserID, Email: claims.Email}, nil
}
