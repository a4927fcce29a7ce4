// Package types provides common type definitions shared across the Mezo Lite
// services.
package types

import "fmt"

// TokenBalance is the fungible-token balance snapshot held by the wallet
// engine. Raw is the unscaled integer value as a decimal string.
type TokenBalance struct {
	Raw       string `json:"raw"`
	Decimals  int    `json:"decimals"`
	Symbol    string `json:"symbol"`
	Formatted string `json:"formatted"`
}

// Transaction is the client-side projection of a token transfer. It is
// fetched from the block explorer per view and never persisted.
type Transaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber uint64 `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"`
	IsReceiving bool   `json:"isReceiving"`
	Decimals    int    `json:"decimals"`
	Symbol      string `json:"symbol"`
	TokenName   string `json:"tokenName"`
}

// SessionUser is the denormalized user payload carried in a session token
// and returned by session validation.
type SessionUser struct {
	ID            string `json:"id"`
	Identifier    string `json:"identifier"`
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress"`
}

// SessionValidationResult is the outcome of validating a bearer token:
// either valid with the resolved user, or invalid with a reason.
type SessionValidationResult struct {
	Valid   bool         `json:"valid"`
	User    *SessionUser `json:"user,omitempty"`
	Message string       `json:"message,omitempty"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewServiceError creates a new service error
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}

// Common service error codes
const (
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeCashlinkExists  = "CASHLINK_EXISTS"
	ErrCodeInvalidAmount   = "INVALID_AMOUNT"
	ErrCodeTxReverted      = "TX_REVERTED"
	ErrCodeNoWallet        = "NO_WALLET"
	ErrCodeSessionInvalid  = "SESSION_INVALID"
	ErrCodeStorageFailure  = "STORAGE_FAILURE"
	ErrCodeUpstreamFailure = "UPSTREAM_FAILURE"
)
