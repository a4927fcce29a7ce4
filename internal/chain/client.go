// Package chain wraps the Ethereum RPC connection and the contract
// bindings the wallet uses on the Mezo testnet.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mezo-lite/internal/config"
	"github.com/mezo-lite/internal/logging"
)

// Client wraps an ethclient connection with endpoint failover. All RPC
// methods retry once against the other endpoint when the error looks like
// an infrastructure failure rather than a revert.
type Client struct {
	mu       sync.RWMutex
	eth      *ethclient.Client
	provider *RPCProvider
	chainID  *big.Int
}

// Dial connects to the configured primary RPC endpoint
func Dial(cfg *config.ChainConfig) (*Client, error) {
	provider, err := NewRPCProvider(cfg.RPCPrimary, cfg.RPCSecondary)
	if err != nil {
		return nil, err
	}

	url, err := provider.GetCurrentURL()
	if err != nil {
		return nil, err
	}

	eth, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC endpoint %s: %w", url, err)
	}

	return &Client{
		eth:      eth,
		provider: provider,
		chainID:  big.NewInt(cfg.ChainID),
	}, nil
}

// DialWS connects to a websocket endpoint for event subscriptions. The
// returned client is separate from the HTTP client and owned by the caller.
func DialWS(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket endpoint: %w", err)
	}
	return client, nil
}

// ChainID returns the configured chain ID
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Health returns the RPC provider health snapshot
func (c *Client) Health() *ProviderHealth {
	return c.provider.GetHealth()
}

// Close closes the RPC connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
	}
}

// client returns the current ethclient under the read lock
func (c *Client) client() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eth
}

// failover redials against the other endpoint
func (c *Client) failover() error {
	if err := c.provider.Failover(); err != nil {
		return err
	}

	url, err := c.provider.GetCurrentURL()
	if err != nil {
		return err
	}

	eth, err := ethclient.Dial(url)
	if err != nil {
		return fmt.Errorf("failed to dial failover endpoint %s: %w", url, err)
	}

	c.mu.Lock()
	old := c.eth
	c.eth = eth
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	logging.GetGlobalLogger().WithField("url", url).Warn("switched RPC endpoint")
	return nil
}

// do runs an RPC call with health tracking and a single failover retry
func (c *Client) do(ctx context.Context, fn func(eth *ethclient.Client) error) error {
	start := time.Now()
	err := fn(c.client())
	if err == nil {
		c.provider.RecordSuccess(time.Since(start))
		return nil
	}

	c.provider.RecordFailure(err)
	if !shouldFailover(err) {
		return err
	}

	if failErr := c.failover(); failErr != nil {
		return err
	}

	start = time.Now()
	if err := fn(c.client()); err != nil {
		c.provider.RecordFailure(err)
		return err
	}
	c.provider.RecordSuccess(time.Since(start))
	return nil
}

// shouldFailover determines if an error warrants switching endpoints
func shouldFailover(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") {
		return true
	}

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") {
		return true
	}

	return false
}

// CallContract executes a read-only contract call
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := c.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		out, callErr = eth.CallContract(ctx, msg, nil)
		return callErr
	})
	return out, err
}

// PendingNonceAt returns the next nonce for an account
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		nonce, callErr = eth.PendingNonceAt(ctx, account)
		return callErr
	})
	return nonce, err
}

// SuggestGasPrice returns the suggested gas price
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		price, callErr = eth.SuggestGasPrice(ctx)
		return callErr
	})
	return price, err
}

// EstimateGas estimates gas for a transaction
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		gas, callErr = eth.EstimateGas(ctx, msg)
		return callErr
	})
	return gas, err
}

// SendTransaction broadcasts a signed transaction
func (c *Client) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return c.do(ctx, func(eth *ethclient.Client) error {
		return eth.SendTransaction(ctx, tx)
	})
}

// TransactionReceipt returns the receipt for a transaction hash
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	var receipt *ethtypes.Receipt
	err := c.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		receipt, callErr = eth.TransactionReceipt(ctx, hash)
		return callErr
	})
	return receipt, err
}

// BlockNumber returns the latest block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var num uint64
	err := c.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		num, callErr = eth.BlockNumber(ctx)
		return callErr
	})
	return num, err
}

// FilterLogs executes a log filter query
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	var logs []ethtypes.Log
	err := c.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		logs, callErr = eth.FilterLogs(ctx, query)
		return callErr
	})
	return logs, err
}
