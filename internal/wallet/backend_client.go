// Package wallet implements the client-side wallet engine: balances,
// transfers, cash links, donations and session handling against the chain
// and the Mezo Lite backend.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mezo-lite/internal/models"
	"github.com/mezo-lite/internal/types"
)

// BackendClient talks to the Mezo Lite backend REST API. Write paths carry
// the static API key; everything else authenticates with the session token
// obtained from mobile-auth.
type BackendClient struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu           sync.RWMutex
	sessionToken string
}

// NewBackendClient creates a backend API client
func NewBackendClient(baseURL, apiKey string) *BackendClient {
	return &BackendClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetSessionToken stores the bearer token used on authenticated routes
func (c *BackendClient) SetSessionToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionToken = token
}

// SessionToken returns the current bearer token
func (c *BackendClient) SessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionToken
}

// errorEnvelope mirrors the backend's error response shape
type errorEnvelope struct {
	Error types.ServiceError `json:"error"`
}

func (c *BackendClient) do(ctx context.Context, method, path string, body interface{}, out interface{}, withAPIKey bool, accept ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if withAPIKey {
		req.Header.Set("x-auth-key", c.apiKey)
	}
	if token := c.SessionToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // read-side close

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read backend response: %w", err)
	}

	ok := resp.StatusCode == http.StatusOK
	for _, status := range accept {
		if resp.StatusCode == status {
			ok = true
		}
	}

	if !ok {
		var envelope errorEnvelope
		if jsonErr := json.Unmarshal(data, &envelope); jsonErr == nil && envelope.Error.Code != "" {
			return &envelope.Error
		}
		return types.NewServiceError(types.ErrCodeUpstreamFailure,
			fmt.Sprintf("backend returned %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse backend response: %w", err)
		}
	}

	return nil
}

// mobileAuthRequest matches the backend's mobile-auth payload
type mobileAuthRequest struct {
	Identifier    string `json:"identifier"`
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress"`
}

// MobileAuthResult is the parsed mobile-auth response
type MobileAuthResult struct {
	Success      bool         `json:"success"`
	User         *models.User `json:"user"`
	SessionToken string       `json:"sessionToken"`
}

// MobileAuth registers or updates the user record and stores the returned
// session token for subsequent calls.
func (c *BackendClient) MobileAuth(ctx context.Context, identifier, username, walletAddress string) (*MobileAuthResult, error) {
	var result MobileAuthResult
	err := c.do(ctx, http.MethodPost, "/api/mobile-auth", mobileAuthRequest{
		Identifier:    identifier,
		Username:      username,
		WalletAddress: walletAddress,
	}, &result, true)
	if err != nil {
		return nil, err
	}

	c.SetSessionToken(result.SessionToken)
	return &result, nil
}

type createCashlinkRequest struct {
	Code            string `json:"code"`
	TransactionHash string `json:"transactionHash"`
}

type createCashlinkResponse struct {
	Success  bool             `json:"success"`
	Cashlink *models.CashLink `json:"cashlink"`
}

// CreateCashlink records a claim code against its on-chain transaction hash
func (c *BackendClient) CreateCashlink(ctx context.Context, code, transactionHash string) (*models.CashLink, error) {
	var resp createCashlinkResponse
	err := c.do(ctx, http.MethodPost, "/api/cash-link", createCashlinkRequest{
		Code:            code,
		TransactionHash: transactionHash,
	}, &resp, false)
	if err != nil {
		return nil, err
	}
	return resp.Cashlink, nil
}

// Cashlinks returns the user's transaction-hash-to-code map
func (c *BackendClient) Cashlinks(ctx context.Context) (map[string]string, error) {
	var result map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/cash-link", nil, &result, false); err != nil {
		return nil, err
	}
	return result, nil
}

type resolveUserRequest struct {
	Payload string `json:"payload"`
}

type resolveUserResponse struct {
	User *models.User `json:"user"`
}

// ResolveUser looks up a user by username, phone number or email
func (c *BackendClient) ResolveUser(ctx context.Context, payload string) (*models.User, error) {
	var resp resolveUserResponse
	if err := c.do(ctx, http.MethodPost, "/api/resolve-user", resolveUserRequest{Payload: payload}, &resp, false); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// ValidateSession checks whether the stored session token is still valid.
// The backend answers 401 for dead sessions with the reason in the body, so
// that status is read as an answer rather than a failure.
func (c *BackendClient) ValidateSession(ctx context.Context) (*types.SessionValidationResult, error) {
	var result types.SessionValidationResult
	if err := c.do(ctx, http.MethodPost, "/api/validate-session", nil, &result, false, http.StatusUnauthorized); err != nil {
		return nil, err
	}
	return &result, nil
}
