package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
}

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return NewService(st, testJWTConfig())
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ab", "password123")
	require.True(t, errors.Is(err, ErrInvalidUsername))

	// Should be validated after trimming whitespace.
	_, err = svc.Register(ctx, " ab ", "password123")
	require.True(t, errors.Is(err, ErrInvalidUsername))
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Register(context.Background(), "alice", "123")
	require.True(t, errors.Is(err, ErrInvalidPassword))
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, registered.UserID)

	claims, err := svc.ValidateToken(registered.Token)
	require.NoError(t, err)
	require.Equal(t, registered.UserID, claims.UserID())
	require.Equal(t, "alice", claims.Username)

	_, err = svc.Register(ctx, "alice", "password123")
	require.True(t, errors.Is(err, ErrUserExists))

	loggedIn, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	require.Equal(t, registered.UserID, loggedIn.UserID)

	_, err = svc.Login(ctx, "alice", "wrong-password")
	require.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = svc.Login(ctx, "nobody", "password123")
	require.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestValidateToken(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, "u1", "alice")
	require.NoError(t, err)
	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID())

	other := *cfg
	other.Secret = []byte("another-secret")
	_, err = ValidateToken(&other, token)
	require.True(t, errors.Is(err, ErrInvalidToken))

	other = *cfg
	other.Audience = "someone-else"
	_, err = ValidateToken(&other, token)
	require.True(t, errors.Is(err, ErrInvalidToken))

	expired := *cfg
	expired.TTL = -time.Minute
	stale, err := GenerateToken(&expired, "u1", "alice")
	require.NoError(t, err)
	_, err = ValidateToken(cfg, stale)
	require.True(t, errors.Is(err, ErrInvalidToken))
}
