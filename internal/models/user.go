// Package models provides data models for the Mezo Lite backend.
package models

import "time"

// User represents a wallet user. A row is created on first successful wallet
// authentication, keyed by the identifier (phone number or email) the wallet
// SDK verified. Username and wallet address follow the latest sign-in.
type User struct {
	ID            string    `json:"id" db:"id"`
	Identifier    string    `json:"identifier" db:"identifier"`
	Username      string    `json:"username" db:"username"`
	WalletAddress string    `json:"walletAddress" db:"wallet_address"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}
