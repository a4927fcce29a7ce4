package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// PermitSignature holds the split signature components passed on-chain
type PermitSignature struct {
	V uint8
	R common.Hash
	S common.Hash
}

// PermitParams describe an EIP-2612 permit to sign
type PermitParams struct {
	TokenName string // token.name(), the EIP-712 domain name
	ChainID   *big.Int
	Token     common.Address // verifying contract
	Owner     common.Address
	Spender   common.Address
	Value     *big.Int
	Nonce     *big.Int
	Deadline  *big.Int
}

// SignPermit produces the EIP-712 signature for an EIP-2612 permit. The
// domain version is fixed at "1" to match the deployed token.
func SignPermit(key *ecdsa.PrivateKey, params PermitParams) (*PermitSignature, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Permit": []apitypes.Type{
				{Name: "owner", Type: "address"},
				{Name: "spender", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Permit",
		Domain: apitypes.TypedDataDomain{
			Name:              params.TokenName,
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(params.ChainID),
			VerifyingContract: params.Token.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"owner":    params.Owner.Hex(),
			"spender":  params.Spender.Hex(),
			"value":    (*math.HexOrDecimal256)(params.Value),
			"nonce":    (*math.HexOrDecimal256)(params.Nonce),
			"deadline": (*math.HexOrDecimal256)(params.Deadline),
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to hash permit typed data: %w", err)
	}

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign permit digest: %w", err)
	}

	// crypto.Sign yields v in {0,1}; contracts expect 27/28
	v := sig[64]
	if v < 27 {
		v += 27
	}

	return &PermitSignature{
		V: v,
		R: common.BytesToHash(sig[:32]),
		S: common.BytesToHash(sig[32:64]),
	}, nil
}
