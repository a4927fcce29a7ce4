package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/models"
	"github.com/mezo-lite/internal/token"
	"github.com/mezo-lite/internal/types"
)

// TokenOps is the slice of token contract operations the cash link flow
// needs. Implemented over the chain bindings by the engine.
type TokenOps interface {
	// EscrowAllowance reads the escrow contract's allowance over the
	// wallet's balance.
	EscrowAllowance(ctx context.Context) (*big.Int, error)
	// ApproveEscrowMax grants the escrow an unlimited allowance and waits
	// for the receipt.
	ApproveEscrowMax(ctx context.Context) error
	// Decimals returns the token's decimal count.
	Decimals(ctx context.Context) (int, error)
}

// EscrowOps is the slice of escrow contract operations the cash link flow
// needs.
type EscrowOps interface {
	// CreateCashlink locks amount behind the claim hash and returns the
	// mined transaction hash.
	CreateCashlink(ctx context.Context, amount *big.Int, claimCode string) (string, error)
	// Claim redeems a cash link by revealing its code.
	Claim(ctx context.Context, code string) (string, error)
}

// CashlinkBackend is the backend surface the flow persists to
type CashlinkBackend interface {
	CreateCashlink(ctx context.Context, code, transactionHash string) (*models.CashLink, error)
	Cashlinks(ctx context.Context) (map[string]string, error)
}

// GenerateClaimCode produces a random 16-byte claim secret, hex-encoded for
// sharing. The code string itself is the hash pre-image.
func GenerateClaimCode() (string, error) {
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate claim secret: %w", err)
	}
	return hex.EncodeToString(secret), nil
}

// CashlinkEntry is one entry in the local cash link cache. Provisional
// entries were created locally and not yet confirmed by the server.
type CashlinkEntry struct {
	Code        string `json:"code"`
	Provisional bool   `json:"provisional"`
}

// CashlinkManager drives the cash link create and claim flows and keeps a
// local cache reconciled against the backend.
type CashlinkManager struct {
	token   TokenOps
	escrow  EscrowOps
	backend CashlinkBackend

	mu    sync.RWMutex
	links map[string]CashlinkEntry // tx hash -> entry
}

// NewCashlinkManager creates a cash link manager
func NewCashlinkManager(tokenOps TokenOps, escrowOps EscrowOps, backend CashlinkBackend) *CashlinkManager {
	return &CashlinkManager{
		token:   tokenOps,
		escrow:  escrowOps,
		backend: backend,
		links:   make(map[string]CashlinkEntry),
	}
}

// CreateResult is the outcome of a successful cash link creation
type CreateResult struct {
	Code            string
	TransactionHash string
	// PersistErr is set when the on-chain creation succeeded but the
	// backend write failed. The link is live and claimable either way;
	// the entry stays provisional in the local cache.
	PersistErr error
}

// Create runs the full cash link creation flow: ensure allowance, generate
// the secret, lock funds on-chain, then persist the code to the backend.
// The backend write happens only after on-chain success so a stored code
// always refers to locked funds.
func (m *CashlinkManager) Create(ctx context.Context, amount string) (*CreateResult, error) {
	decimals, err := m.token.Decimals(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := token.ParseUnits(amount, decimals)
	if err != nil {
		return nil, types.NewServiceError(types.ErrCodeInvalidAmount, fmt.Sprintf("invalid amount %q", amount))
	}
	if raw.Sign() <= 0 {
		return nil, types.NewServiceError(types.ErrCodeInvalidAmount, "amount must be positive")
	}

	allowance, err := m.token.EscrowAllowance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}

	if allowance.Cmp(raw) < 0 {
		if err := m.token.ApproveEscrowMax(ctx); err != nil {
			return nil, fmt.Errorf("approval failed: %w", err)
		}
	}

	code, err := GenerateClaimCode()
	if err != nil {
		return nil, err
	}

	txHash, err := m.escrow.CreateCashlink(ctx, raw, code)
	if err != nil {
		return nil, fmt.Errorf("cashlink creation failed: %w", err)
	}

	result := &CreateResult{Code: code, TransactionHash: txHash}

	// Funds are locked; record locally before attempting the backend write
	m.mu.Lock()
	m.links[txHash] = CashlinkEntry{Code: code, Provisional: true}
	m.mu.Unlock()

	if _, err := m.backend.CreateCashlink(ctx, code, txHash); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("tx_hash", txHash).
			Error("cashlink created on-chain but backend persist failed")
		result.PersistErr = err
		return result, nil
	}

	m.mu.Lock()
	m.links[txHash] = CashlinkEntry{Code: code, Provisional: false}
	m.mu.Unlock()

	return result, nil
}

// Claim redeems a cash link code and returns the transaction hash. The code
// is trimmed first so a pasted code with stray whitespace does not burn a
// failed transaction.
func (m *CashlinkManager) Claim(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", types.NewServiceError(types.ErrCodeInvalidAmount, "claim code is empty")
	}
	return m.escrow.Claim(ctx, code)
}

// Refresh pulls the server's cash link map and merges it into the local
// cache. Server entries are authoritative; local provisional entries with
// no server record stay provisional.
func (m *CashlinkManager) Refresh(ctx context.Context) error {
	serverLinks, err := m.backend.Cashlinks(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for txHash, code := range serverLinks {
		m.links[txHash] = CashlinkEntry{Code: code, Provisional: false}
	}

	return nil
}

// Links returns a snapshot of the local cash link cache keyed by
// transaction hash.
func (m *CashlinkManager) Links() map[string]CashlinkEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]CashlinkEntry, len(m.links))
	for k, v := range m.links {
		out[k] = v
	}
	return out
}
