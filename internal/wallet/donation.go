package wallet

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/mezo-lite/internal/chain"
	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/token"
	"github.com/mezo-lite/internal/types"
)

// permitValidity is how long a donation permit stays redeemable. The
// donation contract consumes it in the same transaction, so the window only
// needs to outlive broadcast and mining.
const permitValidity = time.Hour

// PermitSigner produces an EIP-2612 permit over the wallet's key for the
// donation contract as spender.
type PermitSigner interface {
	SignPermit(ctx context.Context, value, deadline *big.Int) (*chain.PermitSignature, error)
}

// DonationOps is the donation contract surface the flow needs
type DonationOps interface {
	DonateWithPermit(ctx context.Context, beneficiaryID, amount, deadline *big.Int, sig *chain.PermitSignature) (string, error)
}

// DonationManager runs the gasless-approval donation flow: sign a permit for
// the exact amount, then submit it with the donation in one transaction.
type DonationManager struct {
	token    TokenOps
	signer   PermitSigner
	donation DonationOps
}

// NewDonationManager creates a donation manager
func NewDonationManager(tokenOps TokenOps, signer PermitSigner, donation DonationOps) *DonationManager {
	return &DonationManager{
		token:    tokenOps,
		signer:   signer,
		donation: donation,
	}
}

// Donate sends amount to the beneficiary via donateWithPermit and returns
// the transaction hash.
func (m *DonationManager) Donate(ctx context.Context, beneficiaryID int64, amount string) (string, error) {
	if beneficiaryID < 0 {
		return "", types.NewServiceError(types.ErrCodeInvalidAmount, "beneficiary id must not be negative")
	}

	decimals, err := m.token.Decimals(ctx)
	if err != nil {
		return "", err
	}

	raw, err := token.ParseUnits(amount, decimals)
	if err != nil {
		return "", types.NewServiceError(types.ErrCodeInvalidAmount, fmt.Sprintf("invalid amount %q", amount))
	}
	if raw.Sign() <= 0 {
		return "", types.NewServiceError(types.ErrCodeInvalidAmount, "amount must be positive")
	}

	deadline := big.NewInt(time.Now().Add(permitValidity).Unix())

	sig, err := m.signer.SignPermit(ctx, raw, deadline)
	if err != nil {
		return "", fmt.Errorf("failed to sign permit: %w", err)
	}

	txHash, err := m.donation.DonateWithPermit(ctx, big.NewInt(beneficiaryID), raw, deadline, sig)
	if err != nil {
		return "", err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"tx_hash":     txHash,
		"beneficiary": beneficiaryID,
	}).Info("donation confirmed")

	return txHash, nil
}
