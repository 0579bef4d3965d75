package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clinsight/internal/config"
	"clinsight/internal/domain"
)

const accessAudience = "access"

// Claims are the bearer token claims. Sign-in happens upstream; the subject
// is the user identifier.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenService verifies bearer tokens and mints development tokens.
type TokenService interface {
	ValidateToken(tokenString string) (*Claims, error)
	IssueToken(userID, email string, ttl time.Duration) (string, time.Time, error)
}

type tokenService struct {
	cfg config.JWTConfig
	now func() time.Time
}

// NewTokenService creates a new TokenService implementation.
func NewTokenService(cfg config.JWTConfig) TokenService {
	return &tokenService{cfg: cfg, now: time.Now}
}

func (s *tokenService) IssueToken(userID, email string, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = s.cfg.DevTokenExpiry
	}
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Audience:  jwt.ClaimStrings{accessAudience},
		},
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *tokenService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(accessAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}
