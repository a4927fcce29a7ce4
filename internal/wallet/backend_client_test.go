package wallet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mezo-lite/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendClient_ValidateSession(t *testing.T) {
	t.Run("live session", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/validate-session", r.URL.Path)
			require.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"valid":true,"user":{"id":"u-1","identifier":"alice@example.com"}}`)) // nolint:errcheck
		}))
		defer srv.Close()

		client := NewBackendClient(srv.URL, "key")
		client.SetSessionToken("session-token")

		result, err := client.ValidateSession(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Valid)
		require.NotNil(t, result.User)
		assert.Equal(t, "u-1", result.User.ID)
	})

	t.Run("dead session answers 401 with the reason", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"valid":false,"message":"Token expired"}`)) // nolint:errcheck
		}))
		defer srv.Close()

		client := NewBackendClient(srv.URL, "key")
		client.SetSessionToken("stale-token")

		result, err := client.ValidateSession(context.Background())
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, "Token expired", result.Message)
		assert.Nil(t, result.User)
	})
}

func TestBackendClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"CASHLINK_EXISTS","message":"cashlink already recorded"}}`)) // nolint:errcheck
	}))
	defer srv.Close()

	client := NewBackendClient(srv.URL, "key")

	_, err := client.CreateCashlink(context.Background(), "abc", "0xdead")
	require.Error(t, err)

	var svcErr *types.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, types.ErrCodeCashlinkExists, svcErr.Code)
}
