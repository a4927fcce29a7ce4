package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mezo-lite/internal/chain"
	"github.com/mezo-lite/internal/config"
	"github.com/mezo-lite/internal/explorer"
	"github.com/mezo-lite/internal/retry"
	"github.com/mezo-lite/internal/token"
	"github.com/mezo-lite/internal/types"
)

// Engine wires the chain bindings, the explorer and the backend into the
// wallet's user-facing operations. One engine serves one key.
type Engine struct {
	client *chain.Client
	sender *chain.TxSender
	key    *ecdsa.PrivateKey

	token    *chain.ERC20
	escrow   *chain.Escrow
	donation *chain.Donation

	Backend   *BackendClient
	Cashlinks *CashlinkManager
	Donations *DonationManager
	Balance   *BalancePoller
	History   *HistoryService
	Pending   *PendingClaims
}

// NewEngine dials the chain and builds the wallet around the given config.
// The private key comes from cfg.Wallet.
func NewEngine(cfg *config.Config) (*Engine, error) {
	if cfg.Wallet.PrivateKey == "" {
		return nil, types.NewServiceError(types.ErrCodeNoWallet, "no wallet key configured")
	}

	key, err := crypto.HexToECDSA(cfg.Wallet.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet key: %w", err)
	}

	client, err := chain.Dial(&cfg.Chain)
	if err != nil {
		return nil, err
	}

	sender := chain.NewTxSenderFromKey(client, key)
	erc20 := chain.NewERC20(client, cfg.Contracts.Token)
	escrow := chain.NewEscrow(client, cfg.Contracts.CashlinkEscrow)
	donation := chain.NewDonation(client, cfg.Contracts.Donation)
	backend := NewBackendClient(cfg.Backend.BaseURL, cfg.Auth.APIKey)

	e := &Engine{
		client:   client,
		sender:   sender,
		key:      key,
		token:    erc20,
		escrow:   escrow,
		donation: donation,
		Backend:  backend,
		Pending:  NewPendingClaims(),
	}

	tokenOps := &tokenAdapter{engine: e}
	e.Cashlinks = NewCashlinkManager(tokenOps, &escrowAdapter{engine: e}, backend)
	e.Donations = NewDonationManager(tokenOps, &permitAdapter{engine: e}, &donationAdapter{engine: e})
	e.Balance = NewBalancePoller(&balanceFetcher{engine: e}, cfg.Polling.Interval,
		WithRetryPolicy(pollingRetryPolicy(&cfg.Polling)))
	e.History = NewHistoryService(explorer.NewClient(&cfg.Explorer),
		sender.Address().Hex(), cfg.Contracts.Token, 5)

	return e, nil
}

// pollingRetryPolicy builds the balance fetch retry policy from config,
// falling back to the default 3-attempt policy for unset or invalid values.
func pollingRetryPolicy(cfg *config.PollingConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		policy.InitialDelay = cfg.RetryBackoff
	}
	return policy
}

// Address returns the wallet's address
func (e *Engine) Address() common.Address {
	return e.sender.Address()
}

// Close releases the RPC connection
func (e *Engine) Close() {
	e.client.Close()
}

// Connect authenticates against the backend, binding this wallet address to
// the user record, and stores the session token for later calls.
func (e *Engine) Connect(ctx context.Context, identifier, username string) (*MobileAuthResult, error) {
	return e.Backend.MobileAuth(ctx, identifier, username, e.sender.Address().Hex())
}

// Transfer sends a plain token transfer and returns the transaction hash
func (e *Engine) Transfer(ctx context.Context, to, amount string) (string, error) {
	if !common.IsHexAddress(to) {
		return "", types.NewServiceError(types.ErrCodeInvalidAmount, fmt.Sprintf("invalid recipient address %q", to))
	}

	decimals, err := e.token.Decimals(ctx)
	if err != nil {
		return "", err
	}

	raw, err := token.ParseUnits(amount, int(decimals))
	if err != nil || raw.Sign() <= 0 {
		return "", types.NewServiceError(types.ErrCodeInvalidAmount, fmt.Sprintf("invalid amount %q", amount))
	}

	receipt, err := e.token.Transfer(ctx, e.sender, common.HexToAddress(to), raw)
	if err != nil {
		return "", err
	}

	e.Balance.Refresh()
	return receipt.TxHash.Hex(), nil
}

// WatchIncomingTransfers opens a websocket subscription that nudges the
// balance poller on any transfer touching this wallet. Returns nil without
// error when no websocket endpoint is configured.
func (e *Engine) WatchIncomingTransfers(ctx context.Context, wsEndpoint string) (*TransferWatcher, error) {
	if wsEndpoint == "" {
		return nil, nil
	}

	wsClient, err := chain.DialWS(ctx, wsEndpoint)
	if err != nil {
		return nil, err
	}

	queries := e.token.TransferFilterQuery(e.sender.Address())
	return WatchTransfers(ctx, wsClient, queries, e.Balance)
}

// ClaimPending redeems every queued deep-link claim. Failures are returned
// per code; one bad link does not block the rest.
func (e *Engine) ClaimPending(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, code := range e.Pending.Drain() {
		_, err := e.Cashlinks.Claim(ctx, code)
		results[code] = err
	}
	return results
}

// tokenAdapter exposes the token binding through the flow interfaces
type tokenAdapter struct {
	engine *Engine
}

func (a *tokenAdapter) EscrowAllowance(ctx context.Context) (*big.Int, error) {
	return a.engine.token.Allowance(ctx, a.engine.sender.Address(), a.engine.escrow.Address())
}

func (a *tokenAdapter) ApproveEscrowMax(ctx context.Context) error {
	_, err := a.engine.token.Approve(ctx, a.engine.sender, a.engine.escrow.Address(), chain.MaxUint256)
	return err
}

func (a *tokenAdapter) Decimals(ctx context.Context) (int, error) {
	decimals, err := a.engine.token.Decimals(ctx)
	if err != nil {
		return 0, err
	}
	return int(decimals), nil
}

type escrowAdapter struct {
	engine *Engine
}

func (a *escrowAdapter) CreateCashlink(ctx context.Context, amount *big.Int, claimCode string) (string, error) {
	receipt, err := a.engine.escrow.CreateCashlink(ctx, a.engine.sender, amount, chain.HashClaimCode(claimCode))
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

func (a *escrowAdapter) Claim(ctx context.Context, code string) (string, error) {
	receipt, err := a.engine.escrow.Claim(ctx, a.engine.sender, code)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// permitAdapter signs EIP-2612 permits naming the donation contract as
// spender.
type permitAdapter struct {
	engine *Engine
}

func (a *permitAdapter) SignPermit(ctx context.Context, value, deadline *big.Int) (*chain.PermitSignature, error) {
	name, err := a.engine.token.Name(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := a.engine.token.Nonces(ctx, a.engine.sender.Address())
	if err != nil {
		return nil, err
	}

	return chain.SignPermit(a.engine.key, chain.PermitParams{
		TokenName: name,
		ChainID:   a.engine.client.ChainID(),
		Token:     a.engine.token.Address(),
		Owner:     a.engine.sender.Address(),
		Spender:   a.engine.donation.Address(),
		Value:     value,
		Nonce:     nonce,
		Deadline:  deadline,
	})
}

type donationAdapter struct {
	engine *Engine
}

func (a *donationAdapter) DonateWithPermit(ctx context.Context, beneficiaryID, amount, deadline *big.Int, sig *chain.PermitSignature) (string, error) {
	receipt, err := a.engine.donation.DonateWithPermit(ctx, a.engine.sender, beneficiaryID, amount, deadline, sig)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// balanceFetcher reads the wallet's balance snapshot for the poller
type balanceFetcher struct {
	engine *Engine
}

func (f *balanceFetcher) FetchBalance(ctx context.Context) (*types.TokenBalance, error) {
	raw, err := f.engine.token.BalanceOf(ctx, f.engine.sender.Address())
	if err != nil {
		return nil, err
	}

	decimals, err := f.engine.token.Decimals(ctx)
	if err != nil {
		return nil, err
	}

	symbol, err := f.engine.token.Symbol(ctx)
	if err != nil {
		return nil, err
	}

	return &types.TokenBalance{
		Raw:       raw.String(),
		Decimals:  int(decimals),
		Symbol:    symbol,
		Formatted: token.FormatUnits(raw, int(decimals)),
	}, nil
}
