package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"expensed/internal/core"
	"expensed/internal/storage/jsonfile"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	store, err := jsonfile.New(t.TempDir())
	require.NoError(t, err)
	return NewService(store, "test-secret", ttl, bcrypt.MinCost, nil)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := s.Register(ctx, "", "password")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.Register(ctx, "alice", "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.Register(ctx, "   ", "password")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService(t, time.Hour)
	ctx := context.Background()

	id, err := s.Register(ctx, "alice", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = s.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, core.ErrConflict)

	token, err := s.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)

	identity, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, identity.ID)
	assert.Equal(t, "alice", identity.Username)
}

func TestLoginStorageFailureIsNotAnAuthFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := jsonfile.New(dir)
	require.NoError(t, err)
	s := NewService(store, "test-secret", time.Hour, bcrypt.MinCost, nil)
	ctx := context.Background()

	_, err = s.Register(ctx, "alice", "hunter22")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte("{corrupt"), 0o644))

	_, err = s.Login(ctx, "alice", "hunter22")
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.NotErrorIs(t, err, core.ErrAuthentication)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice", "hunter22")
	require.NoError(t, err)

	_, unknownUser := s.Login(ctx, "bob", "hunter22")
	_, wrongPassword := s.Login(ctx, "alice", "wrong")

	require.Error(t, unknownUser)
	require.Error(t, wrongPassword)
	assert.ErrorIs(t, unknownUser, core.ErrAuthentication)
	assert.ErrorIs(t, wrongPassword, core.ErrAuthentication)
	assert.Equal(t, unknownUser.Error(), wrongPassword.Error())
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	s := newTestService(t, time.Hour)

	_, err := s.Verify("")
	assert.ErrorIs(t, err, core.ErrAuthentication)

	_, err = s.Verify("not-a-token")
	assert.ErrorIs(t, err, core.ErrAuthentication)

	// Token signed with a different secret.
	other := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username:         "alice",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	forged, err := other.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	_, err = s.Verify(forged)
	assert.ErrorIs(t, err, core.ErrAuthentication)

	// Unsigned token.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Username:         "alice",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(unsigned)
	assert.ErrorIs(t, err, core.ErrAuthentication)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	s := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice", "hunter22")
	require.NoError(t, err)

	short := newTestService(t, time.Hour)
	short.users = s.users
	short.tokenTTL = -time.Minute

	token, err := short.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)

	_, err = s.Verify(token)
	assert.ErrorIs(t, err, core.ErrAuthentication)
}
