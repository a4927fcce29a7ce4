package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/mezo-lite/internal/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePermitSigner struct {
	err          error
	lastValue    *big.Int
	lastDeadline *big.Int
}

func (f *fakePermitSigner) SignPermit(ctx context.Context, value, deadline *big.Int) (*chain.PermitSignature, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastValue = new(big.Int).Set(value)
	f.lastDeadline = new(big.Int).Set(deadline)
	return &chain.PermitSignature{V: 27}, nil
}

type fakeDonationOps struct {
	err             error
	lastBeneficiary *big.Int
	lastAmount      *big.Int
	lastSig         *chain.PermitSignature
}

func (f *fakeDonationOps) DonateWithPermit(ctx context.Context, beneficiaryID, amount, deadline *big.Int, sig *chain.PermitSignature) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastBeneficiary = new(big.Int).Set(beneficiaryID)
	f.lastAmount = new(big.Int).Set(amount)
	f.lastSig = sig
	return "0xdonate1", nil
}

func TestDonate(t *testing.T) {
	signer := &fakePermitSigner{}
	donation := &fakeDonationOps{}
	m := NewDonationManager(&fakeTokenOps{decimals: 18}, signer, donation)

	txHash, err := m.Donate(context.Background(), 7, "2.5")
	require.NoError(t, err)
	assert.Equal(t, "0xdonate1", txHash)

	assert.Equal(t, "2500000000000000000", donation.lastAmount.String())
	assert.Equal(t, int64(7), donation.lastBeneficiary.Int64())
	assert.Equal(t, signer.lastValue, donation.lastAmount)
	require.NotNil(t, donation.lastSig)

	// Deadline sits roughly an hour out
	deadline := time.Unix(signer.lastDeadline.Int64(), 0)
	assert.WithinDuration(t, time.Now().Add(time.Hour), deadline, time.Minute)
}

func TestDonate_RejectsBadInput(t *testing.T) {
	m := NewDonationManager(&fakeTokenOps{decimals: 18}, &fakePermitSigner{}, &fakeDonationOps{})

	_, err := m.Donate(context.Background(), -1, "1")
	assert.Error(t, err)

	_, err = m.Donate(context.Background(), 1, "0")
	assert.Error(t, err)

	_, err = m.Donate(context.Background(), 1, "nope")
	assert.Error(t, err)
}

func TestDonate_SignerFailureStopsFlow(t *testing.T) {
	donation := &fakeDonationOps{}
	m := NewDonationManager(&fakeTokenOps{decimals: 18}, &fakePermitSigner{err: errors.New("no key")}, donation)

	_, err := m.Donate(context.Background(), 1, "1")
	require.Error(t, err)
	assert.Nil(t, donation.lastAmount)
}
