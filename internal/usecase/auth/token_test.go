package auth

import (
	"testing"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestTokenService_IssueAndVerify(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService(secret)

	token, err := svc.Issue(7, domain.GenderFemale, "approved", time.Hour)
	req.NoError(err)

	claims, err := svc.Verify(token)
	req.NoError(err)
	req.Equal(7, claims.UserID)
	req.Equal(domain.GenderFemale, claims.Gender)
	req.Equal("approved", claims.Status)
}

func TestTokenService_Verify_Rejects(t *testing.T) {
	svc := NewTokenService(secret)

	expired, err := svc.Issue(7, domain.GenderMale, "", -time.Minute)
	require.NoError(t, err)

	foreign, err := NewTokenService("another-secret-another-secret-xx").Issue(7, domain.GenderMale, "", time.Hour)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong secret": foreign,
		"no user id":   noUser,
		"garbage":      "not-a-token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(token)
			require.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}
