package wallet

import (
	"context"
	"math/big"

	"github.com/mezo-lite/internal/token"
	"github.com/mezo-lite/internal/types"
)

// TransferSource lists ERC-20 transfer history for an address
type TransferSource interface {
	TokenTransfers(ctx context.Context, address, token string, maxPages int) ([]types.Transaction, error)
}

// HistoryService fetches the wallet's transfer history per view. Nothing is
// cached or persisted; the explorer is the source of truth.
type HistoryService struct {
	source   TransferSource
	address  string
	token    string
	maxPages int
}

// NewHistoryService creates a history service for one wallet address
func NewHistoryService(source TransferSource, address, tokenAddress string, maxPages int) *HistoryService {
	return &HistoryService{
		source:   source,
		address:  address,
		token:    tokenAddress,
		maxPages: maxPages,
	}
}

// Recent returns the wallet's token transfers, newest first
func (h *HistoryService) Recent(ctx context.Context) ([]types.Transaction, error) {
	return h.source.TokenTransfers(ctx, h.address, h.token, h.maxPages)
}

// DisplayAmount formats a transfer's raw value at its token precision. A
// value that fails to parse renders as-is rather than hiding the row.
func DisplayAmount(tx types.Transaction) string {
	raw, ok := new(big.Int).SetString(tx.Value, 10)
	if !ok {
		return tx.Value
	}
	return token.FormatUnits(raw, tx.Decimals)
}
