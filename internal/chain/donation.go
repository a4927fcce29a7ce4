package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// donationGasLimit is fixed because the node underestimates the permit
// verification path.
const donationGasLimit = 5_000_000

// Donation binds the donation contract
type Donation struct {
	client  *Client
	address common.Address
}

// NewDonation creates a donation binding at the given address
func NewDonation(client *Client, address string) *Donation {
	return &Donation{
		client:  client,
		address: common.HexToAddress(address),
	}
}

// Address returns the donation contract address
func (d *Donation) Address() common.Address {
	return d.address
}

// DonateWithPermit submits a permit-authorized donation and waits for its
// receipt. The signature must cover this contract as the permit spender.
func (d *Donation) DonateWithPermit(ctx context.Context, sender *TxSender, beneficiaryID, amount, deadline *big.Int, sig *PermitSignature) (*ethtypes.Receipt, error) {
	data, err := donationABI.Pack("donateWithPermit", beneficiaryID, amount, deadline, sig.V, sig.R, sig.S)
	if err != nil {
		return nil, fmt.Errorf("failed to pack donateWithPermit call: %w", err)
	}
	return sender.Send(ctx, d.address, nil, data, donationGasLimit)
}
