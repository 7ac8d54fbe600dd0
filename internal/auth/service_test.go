package auth

import (
	"context"
	"testing"
	"time"

	"civicconnect_backend/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type tokenUser struct {
	id    uuid.UUID
	email string
	role  string
}

func (u tokenUser) GetID() uuid.UUID { return u.id }
func (u tokenUser) GetEmail() string { return u.email }
func (u tokenUser) GetRole() string { return u.role }

func newTestJWTService(t *testing.T, expiry time.Duration) *JWTService {
	t.Helper()
	svc, err := NewJWTService(&config.Config{
		JWTSecret:            "test-secret",
		JWTIssuer:            "civicconnect-test",
		JWTAccessTokenExpiry: expiry,
	}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService(t, time.Hour)
	u := tokenUser{id: uuid.New(), email: "ada@example.com", role: "staff"}

	token, expiresAt, err := svc.GenerateAccessToken(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.id, claims.UserID)
	assert.Equal(t, "staff", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_RejectsExpiredAndForeignTokens(t *testing.T) {
	expired := newTestJWTService(t, -time.Minute)
	token, _, err := expired.GenerateAccessToken(tokenUser{id: uuid.New()})
	require.NoError(t, err)
	_, err = expired.ValidateToken(token)
	assert.Error(t, err)

	other, err := NewJWTService(&config.Config{JWTSecret: "other", JWTIssuer: "civicconnect-test", JWTAccessTokenExpiry: time.Hour}, zap.NewNop())
	require.NoError(t, err)
	foreign, _, err := other.GenerateAccessToken(tokenUser{id: uuid.New()})
	require.NoError(t, err)
	_, err = newTestJWTService(t, time.Hour).ValidateToken(foreign)
	assert.Error(t, err)

	_, err = other.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestNewJWTService_SecretRules(t *testing.T) {
	_, err := NewJWTService(&config.Config{GinMode: "release", JWTAccessTokenExpiry: time.Hour}, zap.NewNop())
	assert.Error(t, err)

	svc, err := NewJWTService(&config.Config{GinMode: "debug", JWTAccessTokenExpiry: time.Hour}, zap.NewNop())
	require.NoError(t, err)
	assert.NotEmpty(t, svc.secret)
}

func TestInMemoryBlocklist(t *testing.T) {
	bl := NewInMemoryBlocklistService()
	ctx := context.Background()

	require.NoError(t, bl.AddToBlocklist(ctx, "live", time.Now().Add(time.Minute)))
	require.NoError(t, bl.AddToBlocklist(ctx, "stale", time.Now().Add(-time.Minute)))

	found, err := bl.IsBlocklisted(ctx, "live")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = bl.IsBlocklisted(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, found)
}
