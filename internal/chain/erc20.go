package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// MaxUint256 is the unlimited allowance value used for escrow approvals
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ERC20 binds the MUSD token contract
type ERC20 struct {
	client  *Client
	address common.Address
}

// NewERC20 creates a token binding at the given address
func NewERC20(client *Client, address string) *ERC20 {
	return &ERC20{
		client:  client,
		address: common.HexToAddress(address),
	}
}

// Address returns the token contract address
func (t *ERC20) Address() common.Address {
	return t.address
}

// call executes a read-only method and unpacks the outputs
func (t *ERC20) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	out, err := t.client.CallContract(ctx, ethereum.CallMsg{To: &t.address, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	results, err := erc20ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}

	return results, nil
}

// BalanceOf returns the raw token balance of an address
func (t *ERC20) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	results, err := t.call(ctx, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return results[0].(*big.Int), nil
}

// Decimals returns the token's decimal count
func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	results, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return results[0].(uint8), nil
}

// Symbol returns the token symbol
func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	results, err := t.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	return results[0].(string), nil
}

// Name returns the token name, used as the EIP-712 domain name for permits
func (t *ERC20) Name(ctx context.Context) (string, error) {
	results, err := t.call(ctx, "name")
	if err != nil {
		return "", err
	}
	return results[0].(string), nil
}

// Allowance returns the spender's allowance over the owner's balance
func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	results, err := t.call(ctx, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return results[0].(*big.Int), nil
}

// Nonces returns the owner's permit nonce
func (t *ERC20) Nonces(ctx context.Context, owner common.Address) (*big.Int, error) {
	results, err := t.call(ctx, "nonces", owner)
	if err != nil {
		return nil, err
	}
	return results[0].(*big.Int), nil
}

// Approve submits an approval transaction and waits for its receipt
func (t *ERC20) Approve(ctx context.Context, sender *TxSender, spender common.Address, amount *big.Int) (*ethtypes.Receipt, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve call: %w", err)
	}
	return sender.Send(ctx, t.address, nil, data, 0)
}

// Transfer submits a token transfer and waits for its receipt
func (t *ERC20) Transfer(ctx context.Context, sender *TxSender, to common.Address, amount *big.Int) (*ethtypes.Receipt, error) {
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer call: %w", err)
	}
	return sender.Send(ctx, t.address, nil, data, 0)
}

// TransferTopic returns the Transfer event's topic hash
func TransferTopic() common.Hash {
	return erc20ABI.Events["Transfer"].ID
}

// TransferFilterQuery builds a log filter matching Transfer events where the
// given account is the sender or the recipient.
func (t *ERC20) TransferFilterQuery(account common.Address) []ethereum.FilterQuery {
	accountTopic := common.BytesToHash(account.Bytes())
	return []ethereum.FilterQuery{
		{
			Addresses: []common.Address{t.address},
			Topics:    [][]common.Hash{{TransferTopic()}, {accountTopic}},
		},
		{
			Addresses: []common.Address{t.address},
			Topics:    [][]common.Hash{{TransferTopic()}, nil, {accountTopic}},
		},
	}
}
