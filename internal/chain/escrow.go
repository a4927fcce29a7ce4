package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Escrow binds the cashlink escrow contract
type Escrow struct {
	client  *Client
	address common.Address
}

// NewEscrow creates an escrow binding at the given address
func NewEscrow(client *Client, address string) *Escrow {
	return &Escrow{
		client:  client,
		address: common.HexToAddress(address),
	}
}

// Address returns the escrow contract address
func (e *Escrow) Address() common.Address {
	return e.address
}

// HashClaimCode computes the on-chain commitment for a claim code. The
// contract hashes the code string's bytes, not the decoded secret, so the
// hex string itself is what gets keccak'd.
func HashClaimCode(code string) common.Hash {
	return crypto.Keccak256Hash([]byte(code))
}

// CreateCashlink locks amount tokens in the escrow behind the given claim
// hash and waits for the receipt.
func (e *Escrow) CreateCashlink(ctx context.Context, sender *TxSender, amount *big.Int, claimHash common.Hash) (*ethtypes.Receipt, error) {
	data, err := escrowABI.Pack("createCashlink", amount, claimHash)
	if err != nil {
		return nil, fmt.Errorf("failed to pack createCashlink call: %w", err)
	}
	return sender.Send(ctx, e.address, nil, data, 0)
}

// Claim redeems a cash link by revealing the claim code
func (e *Escrow) Claim(ctx context.Context, sender *TxSender, code string) (*ethtypes.Receipt, error) {
	data, err := escrowABI.Pack("claim", code)
	if err != nil {
		return nil, fmt.Errorf("failed to pack claim call: %w", err)
	}
	return sender.Send(ctx, e.address, nil, data, 0)
}

// CashlinkCreatedEvent is a decoded CashlinkCreated log
type CashlinkCreatedEvent struct {
	Sender          common.Address
	ClaimHash       common.Hash
	Amount          *big.Int
	TransactionHash common.Hash
	BlockNumber     uint64
}

// CashlinkCreatedTopic returns the CashlinkCreated event's topic hash
func CashlinkCreatedTopic() common.Hash {
	return escrowABI.Events["CashlinkCreated"].ID
}

// FilterCashlinkCreated returns all CashlinkCreated events in the given
// block range. Used by the reconciler.
func (e *Escrow) FilterCashlinkCreated(ctx context.Context, fromBlock, toBlock uint64) ([]CashlinkCreatedEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{e.address},
		Topics:    [][]common.Hash{{CashlinkCreatedTopic()}},
	}

	logs, err := e.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter CashlinkCreated logs: %w", err)
	}

	events := make([]CashlinkCreatedEvent, 0, len(logs))
	for _, log := range logs {
		event, err := ParseCashlinkCreated(log)
		if err != nil {
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// ParseCashlinkCreated decodes a CashlinkCreated log entry
func ParseCashlinkCreated(log ethtypes.Log) (CashlinkCreatedEvent, error) {
	if len(log.Topics) < 3 || log.Topics[0] != CashlinkCreatedTopic() {
		return CashlinkCreatedEvent{}, fmt.Errorf("log is not a CashlinkCreated event")
	}

	unpacked, err := escrowABI.Unpack("CashlinkCreated", log.Data)
	if err != nil {
		return CashlinkCreatedEvent{}, fmt.Errorf("failed to unpack CashlinkCreated data: %w", err)
	}

	return CashlinkCreatedEvent{
		Sender:          common.BytesToAddress(log.Topics[1].Bytes()),
		ClaimHash:       log.Topics[2],
		Amount:          unpacked[0].(*big.Int),
		TransactionHash: log.TxHash,
		BlockNumber:     log.BlockNumber,
	}, nil
}
