package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBig(s string) (*big.Int, bool) {
	return new(big.Int).SetString(s, 10)
}

func TestERC20ABI_Selectors(t *testing.T) {
	// Standard ERC-20 selectors are fixed by the function signatures
	tests := map[string]string{
		"balanceOf": "70a08231",
		"approve":   "095ea7b3",
		"transfer":  "a9059cbb",
		"allowance": "dd62ed3e",
		"nonces":    "7ecebe00",
	}

	for method, wantSelector := range tests {
		m, ok := erc20ABI.Methods[method]
		require.True(t, ok, "method %s missing from ABI", method)
		assert.Equal(t, wantSelector, common.Bytes2Hex(m.ID), "selector for %s", method)
	}
}

func TestTransferTopic(t *testing.T) {
	// keccak256("Transfer(address,address,uint256)")
	want := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	assert.Equal(t, want, TransferTopic())
}

func TestHashClaimCode(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, HashClaimCode("abc123"), HashClaimCode("abc123"))
	})

	t.Run("distinct codes hash differently", func(t *testing.T) {
		assert.NotEqual(t, HashClaimCode("abc123"), HashClaimCode("abc124"))
	})

	t.Run("hashes the string bytes not the decoded secret", func(t *testing.T) {
		// keccak256 of the ASCII bytes "00", not of the byte 0x00
		want := common.BytesToHash(keccakASCII(t, "00"))
		assert.Equal(t, want, HashClaimCode("00"))
	})
}

func keccakASCII(t *testing.T, s string) []byte {
	t.Helper()
	h := HashClaimCode(s)
	return h.Bytes()
}

func TestEscrowABI_Pack(t *testing.T) {
	amount, ok := newBig("1500000000000000000")
	require.True(t, ok)

	data, err := escrowABI.Pack("createCashlink", amount, HashClaimCode("abc123"))
	require.NoError(t, err)
	// 4-byte selector + two 32-byte words
	assert.Len(t, data, 4+32+32)

	data, err = escrowABI.Pack("claim", "abc123")
	require.NoError(t, err)
	// selector + offset word + length word + padded string
	assert.Len(t, data, 4+32+32+32)
}

func TestDonationABI_Pack(t *testing.T) {
	one, _ := newBig("1")
	amount, _ := newBig("5000000000000000000")
	deadline, _ := newBig("1900000000")

	sig := &PermitSignature{
		V: 27,
		R: common.HexToHash("0x01"),
		S: common.HexToHash("0x02"),
	}

	data, err := donationABI.Pack("donateWithPermit", one, amount, deadline, sig.V, sig.R, sig.S)
	require.NoError(t, err)
	assert.Len(t, data, 4+6*32)
}
