package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mezo-lite/internal/models"
	"github.com/mezo-lite/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory fakes mirroring the repository semantics

type fakeUserStore struct {
	byIdentifier map[string]*models.User
	nextID       int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byIdentifier: make(map[string]*models.User)}
}

func (f *fakeUserStore) Upsert(_ context.Context, identifier, username, walletAddress string) (*models.User, error) {
	username = strings.ToLower(username)
	if existing, ok := f.byIdentifier[identifier]; ok {
		existing.Username = username
		existing.WalletAddress = walletAddress
		existing.UpdatedAt = time.Now()
		return existing, nil
	}

	f.nextID++
	user := &models.User{
		ID:            fmt.Sprintf("u-%d", f.nextID),
		Identifier:    identifier,
		Username:      username,
		WalletAddress: walletAddress,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	f.byIdentifier[identifier] = user
	return user, nil
}

func (f *fakeUserStore) Resolve(_ context.Context, payload string) (*models.User, error) {
	lowered := strings.ToLower(payload)
	for _, user := range f.byIdentifier {
		if user.Identifier == payload || user.Username == lowered {
			return user, nil
		}
	}
	return nil, types.NewServiceError(types.ErrCodeUserNotFound, fmt.Sprintf("user not found: %s", payload))
}

type fakeCashlinkStore struct {
	links []*models.CashLink
}

func (f *fakeCashlinkStore) Create(_ context.Context, code, transactionHash, userIdentifier string) (*models.CashLink, error) {
	for _, link := range f.links {
		if link.TransactionHash == transactionHash {
			return nil, types.NewServiceError(types.ErrCodeCashlinkExists, "cashlink already recorded")
		}
	}

	link := &models.CashLink{
		ID:              fmt.Sprintf("cl-%d", len(f.links)+1),
		Code:            code,
		TransactionHash: transactionHash,
		UserIdentifier:  userIdentifier,
		CreatedAt:       time.Now(),
	}
	f.links = append(f.links, link)
	return link, nil
}

func (f *fakeCashlinkStore) ListByUser(_ context.Context, userIdentifier string) ([]*models.CashLink, error) {
	var out []*models.CashLink
	for i := len(f.links) - 1; i >= 0; i-- {
		if f.links[i].UserIdentifier == userIdentifier {
			out = append(out, f.links[i])
		}
	}
	return out, nil
}

type fakeSessions struct {
	tokens map[string]*models.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: make(map[string]*models.User)}
}

func (f *fakeSessions) Issue(user *models.User) (string, error) {
	token := "token-" + user.ID
	f.tokens[token] = user
	return token, nil
}

func (f *fakeSessions) Validate(_ context.Context, token string) (*types.SessionValidationResult, error) {
	if token == "" {
		return &types.SessionValidationResult{Valid: false, Message: "No token provided"}, nil
	}
	user, ok := f.tokens[token]
	if !ok {
		return &types.SessionValidationResult{Valid: false, Message: "Invalid token"}, nil
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

const testAPIKey = "test-api-key"

func newTestServer(t *testing.T) (*Server, *fakeUserStore, *fakeCashlinkStore, *fakeSessions) {
	t.Helper()

	users := newFakeUserStore()
	cashlinks := &fakeCashlinkStore{}
	sessions := newFakeSessions()

	cfg := &ServerConfig{
		Host:              "127.0.0.1",
		Port:              "0",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
		RequestsPerSecond: 100,
		Burst:             100,
	}

	server := NewServer(cfg, users, cashlinks, sessions, nil, testAPIKey)
	return server, users, cashlinks, sessions
}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func authenticate(t *testing.T, server *Server, identifier, username, wallet string) (string, *models.User) {
	t.Helper()

	rec := doRequest(t, server, http.MethodPost, "/api/mobile-auth", MobileAuthRequest{
		Identifier:    identifier,
		Username:      username,
		WalletAddress: wallet,
	}, map[string]string{"x-auth-key": testAPIKey})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MobileAuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.SessionToken)
	return resp.SessionToken, resp.User
}

func TestHandleMobileAuth_RequiresAPIKey(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/mobile-auth", MobileAuthRequest{
		Identifier: "alice@example.com",
		Username:   "alice",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleMobileAuth_UpsertsExistingUser(t *testing.T) {
	server, users, _, _ := newTestServer(t)

	_, first := authenticate(t, server, "alice@example.com", "alice", "0x1111")
	_, second := authenticate(t, server, "alice@example.com", "alice_renamed", "0x1111")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice_renamed", second.Username)
	assert.Len(t, users.byIdentifier, 1)
}

func TestHandleMobileAuth_RejectsMissingFields(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	tests := map[string]MobileAuthRequest{
		"missing identifier": {Username: "alice", WalletAddress: "0x1111"},
		"missing username":   {Identifier: "alice@example.com", WalletAddress: "0x1111"},
		"missing wallet":     {Identifier: "alice@example.com", Username: "alice"},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, server, http.MethodPost, "/api/mobile-auth", req,
				map[string]string{"x-auth-key": testAPIKey})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleCashlink_CreateThenList(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	token, _ := authenticate(t, server, "+15551234567", "bob", "0x2222")
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	rec := doRequest(t, server, http.MethodPost, "/api/cash-link", CreateCashlinkRequest{
		Code:            "abc123",
		TransactionHash: "0xdead",
	}, authHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created CreateCashlinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.Equal(t, "abc123", created.Cashlink.Code)
	assert.Equal(t, "+15551234567", created.Cashlink.UserIdentifier)

	rec = doRequest(t, server, http.MethodGet, "/api/cash-link", nil, authHeader)
	require.Equal(t, http.StatusOK, rec.Code)

	var links map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &links))
	assert.Equal(t, map[string]string{"0xdead": "abc123"}, links)
}

func TestHandleCashlink_DistinctRecordsPerTransaction(t *testing.T) {
	server, _, store, _ := newTestServer(t)

	token, _ := authenticate(t, server, "+15551234567", "bob", "0x2222")
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	for _, link := range []CreateCashlinkRequest{
		{Code: "code-one", TransactionHash: "0xaaa"},
		{Code: "code-two", TransactionHash: "0xbbb"},
	} {
		rec := doRequest(t, server, http.MethodPost, "/api/cash-link", link, authHeader)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Len(t, store.links, 2)

	// Same transaction hash again conflicts instead of overwriting
	rec := doRequest(t, server, http.MethodPost, "/api/cash-link", CreateCashlinkRequest{
		Code:            "code-three",
		TransactionHash: "0xaaa",
	}, authHeader)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleCashlink_RequiresSession(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/cash-link", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleResolveUser_OrSemantics(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	token, _ := authenticate(t, server, "carol@example.com", "Carol", "0x3333")
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	for _, payload := range []string{"carol", "carol@example.com"} {
		rec := doRequest(t, server, http.MethodPost, "/api/resolve-user", ResolveUserRequest{Payload: payload}, authHeader)
		require.Equal(t, http.StatusOK, rec.Code, "payload %q", payload)

		var resp ResolveUserResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "carol@example.com", resp.User.Identifier)
		assert.Equal(t, "0x3333", resp.User.WalletAddress)
	}

	rec := doRequest(t, server, http.MethodPost, "/api/resolve-user", ResolveUserRequest{Payload: "nobody"}, authHeader)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleValidateSession(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	token, user := authenticate(t, server, "dave@example.com", "dave", "0x4444")

	t.Run("valid token", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/validate-session", nil, map[string]string{
			"Authorization": "Bearer " + token,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ValidateSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		require.NotNil(t, resp.User)
		assert.Equal(t, user.ID, resp.User.ID)
	})

	t.Run("missing token answers 401 with reason", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/validate-session", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var resp ValidateSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Valid)
		assert.Equal(t, "No token provided", resp.Message)
		assert.Nil(t, resp.User)
	})

	t.Run("unknown token answers 401 with reason", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/api/validate-session", nil, map[string]string{
			"Authorization": "Bearer bogus",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var resp ValidateSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Valid)
		assert.Equal(t, "Invalid token", resp.Message)
	})
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}
