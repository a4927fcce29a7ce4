package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/types"
)

const receiptPollInterval = 2 * time.Second

// TxSender assembles, signs and broadcasts transactions for a single key.
type TxSender struct {
	client     *Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	signer     ethtypes.Signer
}

// NewTxSender creates a sender from a hex-encoded private key
func NewTxSender(client *Client, privateKeyHex string) (*TxSender, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewTxSenderFromKey(client, key), nil
}

// NewTxSenderFromKey creates a sender from an already parsed key
func NewTxSenderFromKey(client *Client, key *ecdsa.PrivateKey) *TxSender {
	return &TxSender{
		client:     client,
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		signer:     ethtypes.NewEIP155Signer(client.ChainID()),
	}
}

// Address returns the sender's address
func (s *TxSender) Address() common.Address {
	return s.address
}

// Send builds, signs and broadcasts a contract call, then waits for the
// receipt. A gasLimit of zero estimates gas from the node; a reverted
// receipt is returned as an error.
func (s *TxSender) Send(ctx context.Context, to common.Address, value *big.Int, data []byte, gasLimit uint64) (*ethtypes.Receipt, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	if gasLimit == 0 {
		gasLimit, err = s.client.EstimateGas(ctx, ethereum.CallMsg{
			From:  s.address,
			To:    &to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := ethtypes.SignTx(tx, s.signer, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"tx_hash": signedTx.Hash().Hex(),
		"to":      to.Hex(),
		"nonce":   nonce,
	}).Info("transaction broadcast")

	return s.WaitReceipt(ctx, signedTx.Hash())
}

// WaitReceipt polls until the transaction is mined. Reverted transactions
// come back as a TX_REVERTED error carrying the hash.
func (s *TxSender) WaitReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return receipt, types.NewServiceError(types.ErrCodeTxReverted,
					fmt.Sprintf("transaction reverted: %s", hash.Hex()))
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
