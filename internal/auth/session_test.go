package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mezo-lite/internal/models"
	"github.com/mezo-lite/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserGetter struct {
	users map[string]*models.User
}

func (f *fakeUserGetter) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, types.NewServiceError(types.ErrCodeUserNotFound, fmt.Sprintf("user not found: %s", id))
	}
	return user, nil
}

func testUser() *models.User {
	return &models.User{
		ID:            "u-1",
		Identifier:    "alice@example.com",
		Username:      "alice",
		WalletAddress: "0x1111111111111111111111111111111111111111",
	}
}

func TestSessionManager_IssueAndValidate(t *testing.T) {
	user := testUser()
	getter := &fakeUserGetter{users: map[string]*models.User{user.ID: user}}
	mgr := NewSessionManager("test-secret", 30*24*time.Hour, getter)

	token, err := mgr.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	result, err := mgr.Validate(context.Background(), token)
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.Equal(t, user.ID, result.User.ID)
	assert.Equal(t, user.Identifier, result.User.Identifier)
	assert.Equal(t, user.Username, result.User.Username)
	assert.Equal(t, user.WalletAddress, result.User.WalletAddress)
	assert.Empty(t, result.Message)
}

func TestSessionManager_Validate_NoToken(t *testing.T) {
	mgr := NewSessionManager("test-secret", time.Hour, &fakeUserGetter{})

	result, err := mgr.Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, MsgNoToken, result.Message)
	assert.Nil(t, result.User)
}

func TestSessionManager_Validate_Garbage(t *testing.T) {
	mgr := NewSessionManager("test-secret", time.Hour, &fakeUserGetter{})

	result, err := mgr.Validate(context.Background(), "not-a-token")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, MsgInvalidToken, result.Message)
}

func TestSessionManager_Validate_WrongSignature(t *testing.T) {
	user := testUser()
	getter := &fakeUserGetter{users: map[string]*models.User{user.ID: user}}

	issuer := NewSessionManager("secret-a", time.Hour, getter)
	validator := NewSessionManager("secret-b", time.Hour, getter)

	token, err := issuer.Issue(user)
	require.NoError(t, err)

	result, err := validator.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, MsgInvalidToken, result.Message)
}

func TestSessionManager_Validate_Expired(t *testing.T) {
	user := testUser()
	getter := &fakeUserGetter{users: map[string]*models.User{user.ID: user}}
	mgr := NewSessionManager("test-secret", time.Hour, getter)

	// Sign a token that expired an hour ago with the same secret
	claims := &SessionClaims{
		Identifier: user.Identifier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	result, err := mgr.Validate(context.Background(), expired)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, MsgTokenExpired, result.Message)
}

func TestSessionManager_Validate_DeletedUser(t *testing.T) {
	user := testUser()
	getter := &fakeUserGetter{users: map[string]*models.User{user.ID: user}}
	mgr := NewSessionManager("test-secret", time.Hour, getter)

	token, err := mgr.Issue(user)
	require.NoError(t, err)

	// User row removed after the token was issued
	delete(getter.users, user.ID)

	result, err := mgr.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, MsgUserNotFound, result.Message)
}

func TestSessionManager_Validate_UnexpectedAlgorithm(t *testing.T) {
	mgr := NewSessionManager("test-secret", time.Hour, &fakeUserGetter{})

	// Unsigned token must be rejected even though it parses
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	result, err := mgr.Validate(context.Background(), unsigned)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, MsgInvalidToken, result.Message)
}
