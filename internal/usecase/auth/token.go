package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the identity service puts in a bearer token.
type Claims struct {
	UserID int           `json:"user_id"`
	Gender domain.Gender `json:"gender"`
	Status string        `json:"status"`
	jwt.RegisteredClaims
}

// TokenService verifies HS256 bearer tokens. Issuing lives in the identity
// service; Issue exists for local runs and tests.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

func (s *TokenService) Issue(userID int, gender domain.Gender, status string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Gender: gender,
		Status: status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify returns domain.ErrInvalidToken for anything that is not a valid,
// unexpired token carrying a user id.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", domain.ErrInvalidToken)
		}
		return nil, domain.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID <= 0 {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
