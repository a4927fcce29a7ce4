package wallet

import (
	"context"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/retry"
	"github.com/mezo-lite/internal/types"
)

const defaultPollInterval = 30 * time.Second

// BalanceFetcher reads the wallet's current token balance
type BalanceFetcher interface {
	FetchBalance(ctx context.Context) (*types.TokenBalance, error)
}

// BalancePoller keeps a token balance fresh with a periodic poll and an
// on-demand refresh channel. The last good balance is served while a refresh
// is failing, so a transient RPC outage never blanks the display.
type BalancePoller struct {
	fetcher  BalanceFetcher
	interval time.Duration
	policy   retry.Policy

	refreshCh chan struct{}

	mu       sync.RWMutex
	current  *types.TokenBalance
	lastErr  error
	fetching bool
}

// PollerOption configures a BalancePoller
type PollerOption func(*BalancePoller)

// WithRetryPolicy overrides the retry policy applied to each fetch cycle
func WithRetryPolicy(policy retry.Policy) PollerOption {
	return func(p *BalancePoller) {
		p.policy = policy
	}
}

// NewBalancePoller creates a balance poller. A non-positive interval falls
// back to the default 30s cadence.
func NewBalancePoller(fetcher BalanceFetcher, interval time.Duration, opts ...PollerOption) *BalancePoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	p := &BalancePoller{
		fetcher:   fetcher,
		interval:  interval,
		policy:    retry.DefaultPolicy(),
		refreshCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until the context is cancelled. An immediate fetch happens on
// entry so the first tick is not a blank screen.
func (p *BalancePoller) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		case <-p.refreshCh:
			p.refresh(ctx)
		}
	}
}

// Refresh requests an out-of-band refresh. Non-blocking; a request while a
// refresh is already queued is coalesced into it.
func (p *BalancePoller) Refresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

// Current returns the latest known balance. If at least one fetch has ever
// succeeded the stale value is returned without an error; the error surfaces
// only when no balance was ever loaded.
func (p *BalancePoller) Current() (*types.TokenBalance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current != nil {
		return p.current, nil
	}
	return nil, p.lastErr
}

// refresh performs one fetch cycle with bounded retry. Overlapping cycles
// are suppressed; the in-flight one finishes and the late request is dropped
// because the next tick covers it.
func (p *BalancePoller) refresh(ctx context.Context) {
	p.mu.Lock()
	if p.fetching {
		p.mu.Unlock()
		return
	}
	p.fetching = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.fetching = false
		p.mu.Unlock()
	}()

	var balance *types.TokenBalance
	err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		var fetchErr error
		balance, fetchErr = p.fetcher.FetchBalance(ctx)
		return fetchErr
	})

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.lastErr = err
		logging.FromContext(ctx).WithError(err).Warn("balance refresh failed")
		return
	}

	p.current = balance
	p.lastErr = nil
}

// LogSubscriber is the subscription surface of an RPC client connected over
// websocket.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- ethtypes.Log) (ethereum.Subscription, error)
}

// TransferWatcher subscribes to the wallet's Transfer events and nudges the
// poller whenever one lands, so incoming funds show up without waiting for
// the next tick.
type TransferWatcher struct {
	subs   []ethereum.Subscription
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// WatchTransfers opens one subscription per filter query and returns a
// watcher whose Close tears all of them down. Subscription errors stop that
// stream; the periodic poll still covers the gap.
func WatchTransfers(ctx context.Context, subscriber LogSubscriber, queries []ethereum.FilterQuery, poller *BalancePoller) (*TransferWatcher, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := &TransferWatcher{cancel: cancel}

	for _, query := range queries {
		logs := make(chan ethtypes.Log, 16)
		sub, err := subscriber.SubscribeFilterLogs(ctx, query, logs)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.subs = append(w.subs, sub)

		w.done.Add(1)
		go func(sub ethereum.Subscription, logs chan ethtypes.Log) {
			defer w.done.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-sub.Err():
					if err != nil {
						logging.FromContext(ctx).WithError(err).Warn("transfer subscription dropped")
					}
					return
				case <-logs:
					poller.Refresh()
				}
			}
		}(sub, logs)
	}

	return w, nil
}

// Close unsubscribes and waits for the event loops to exit
func (w *TransferWatcher) Close() {
	w.cancel()
	for _, sub := range w.subs {
		sub.Unsubscribe()
	}
	w.done.Wait()
}
