package services

import (
	"context"
	"testing"
	"time"

	"kissan-connect-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth(t *testing.T, f *fixture) *AuthService {
	t.Helper()
	return NewAuthService(f.directory, AuthOptions{
		JWTSecret: "test-secret",
		TTL:       time.Hour,
		OTPCode:   "1234",
		OTPRate:   1,
		OTPBurst:  2,
	})
}

func TestVerifyOTPIssuesSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auth := newAuth(t, f)

	require.NoError(t, auth.RequestOTP(ctx, "9000000001"))

	user, token, err := auth.VerifyOTP(ctx, "9000000001", "alice", "1234")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)

	userID, err := auth.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	me, err := auth.CurrentUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "9000000001", me.Mobile)

	// logging in again keeps the identity and takes the new name
	again, _, err := auth.VerifyOTP(ctx, "9000000001", "alicia", "1234")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "alicia", again.Name)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	f := newFixture(t)
	auth := newAuth(t, f)

	_, _, err := auth.VerifyOTP(context.Background(), "1", "alice", "0000")
	assert.ErrorIs(t, err, models.ErrInvalidOperation)

	users, err := f.directory.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRequestOTPRateLimit(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t, newFixture(t))

	require.NoError(t, auth.RequestOTP(ctx, "1"))
	require.NoError(t, auth.RequestOTP(ctx, "1"))
	assert.ErrorIs(t, auth.RequestOTP(ctx, "1"), models.ErrRateLimited)

	// other mobiles have their own bucket
	assert.NoError(t, auth.RequestOTP(ctx, "2"))

	assert.ErrorIs(t, auth.RequestOTP(ctx, " "), models.ErrInvalidOperation)
}

func TestValidateJWTRejectsBadTokens(t *testing.T) {
	auth := newAuth(t, newFixture(t))

	_, err := auth.ValidateJWT("not-a-token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	other := NewAuthService(nil, AuthOptions{JWTSecret: "other", TTL: time.Hour})
	token, err := other.GenerateJWT("u1")
	require.NoError(t, err)
	_, err = auth.ValidateJWT(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = auth.ValidateJWT(signed)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCurrentUserUnknown(t *testing.T) {
	auth := newAuth(t, newFixture(t))
	_, err := auth.CurrentUser(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
