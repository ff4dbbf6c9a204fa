package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenLifetime is fixed; there is no refresh or revocation.
const TokenLifetime = 8 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a verified token proves about the caller.
type Identity struct {
	SubjectID uuid.UUID `json:"id"`
	Role      Role      `json:"rol"`
	Email     string    `json:"correo"`
}

type Claims struct {
	jwt.RegisteredClaims
	Role  Role   `json:"rol"`
	Email string `json:"correo"`
}

// TokenService issues and verifies HS256 bearer tokens with a single
// process-wide key.
type TokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(key []byte, opts ...TokenOption) (*TokenService, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("token signing key is empty")
	}
	s := &TokenService{key: key, ttl: TokenLifetime, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TokenService) Issue(subjectID uuid.UUID, role Role, email string) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("issue token: %w", ErrUnknownRole)
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role:  role,
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns ErrInvalidToken for every failure so callers cannot tell
// an expired token from a forged one.
func (s *TokenService) Verify(tokenStr string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return &Identity{SubjectID: subject, Role: claims.Role, Email: claims.Email}, nil
}
