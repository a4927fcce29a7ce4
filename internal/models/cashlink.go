package models

import "time"

// CashLink pairs an on-chain escrow creation transaction with the claim code
// whose hash the escrow holds. Immutable after insert. The code is the
// pre-image; only its keccak256 hash ever goes on-chain.
type CashLink struct {
	ID              string    `json:"id" db:"id"`
	Code            string    `json:"code" db:"code"`
	TransactionHash string    `json:"transactionHash" db:"transaction_hash"`
	UserIdentifier  string    `json:"userIdentifier" db:"user_identifier"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// CashlinkOrphan records a confirmed on-chain escrow creation with no
// matching backend row. The claim secret is unrecoverable, so the
// reconciler can only flag the gap for operator follow-up.
type CashlinkOrphan struct {
	TransactionHash string    `json:"transactionHash" db:"transaction_hash"`
	SenderAddress   string    `json:"senderAddress" db:"sender_address"`
	Amount          string    `json:"amount" db:"amount"`
	BlockNumber     uint64    `json:"blockNumber" db:"block_number"`
	SeenAt          time.Time `json:"seenAt" db:"seen_at"`
}
