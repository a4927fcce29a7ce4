// Package auth issues and validates signed session tokens for the
// mobile app.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mezo-lite/internal/models"
	"github.com/mezo-lite/internal/types"
)

// Validation failure messages returned to clients. The app switches on
// these strings, so they are part of the API surface.
const (
	MsgNoToken      = "No token provided"
	MsgInvalidToken = "Invalid token"
	MsgTokenExpired = "Token expired"
	MsgUserNotFound = "User not found"
)

// UserGetter looks up a user by ID. Satisfied by storage.UserRepository.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// SessionClaims are the claims embedded in a session token
type SessionClaims struct {
	Identifier    string `json:"identifier"`
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates session tokens
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	users  UserGetter
}

// NewSessionManager creates a new session manager
func NewSessionManager(secret string, ttl time.Duration, users UserGetter) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
	}
}

// Issue creates a signed session token for the given user. Tokens are
// HMAC-signed and expire after the configured TTL.
func (m *SessionManager) Issue(user *models.User) (string, error) {
	now := time.Now()

	claims := &SessionClaims{
		Identifier:    user.Identifier,
		Username:      user.Username,
		WalletAddress: user.WalletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Validate checks a session token and confirms the user behind it still
// exists. A deleted user invalidates otherwise well-formed tokens.
func (m *SessionManager) Validate(ctx context.Context, tokenString string) (*types.SessionValidationResult, error) {
	if tokenString == "" {
		return &types.SessionValidationResult{Valid: false, Message: MsgNoToken}, nil
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return &types.SessionValidationResult{Valid: false, Message: MsgTokenExpired}, nil
		}
		return &types.SessionValidationResult{Valid: false, Message: MsgInvalidToken}, nil
	}

	if !token.Valid {
		return &types.SessionValidationResult{Valid: false, Message: MsgInvalidToken}, nil
	}

	user, err := m.users.GetByID(ctx, claims.Subject)
	if err != nil {
		var svcErr *types.ServiceError
		if errors.As(err, &svcErr) && svcErr.Code == types.ErrCodeUserNotFound {
			return &types.SessionValidationResult{Valid: false, Message: MsgUserNotFound}, nil
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	return &types.SessionValidationResult{
		Valid: true,
		User: &types.SessionUser{
			ID:            user.ID,
			Identifier:    user.Identifier,
			Username:      user.Username,
			WalletAddress: user.WalletAddress,
		},
	}, nil
}
