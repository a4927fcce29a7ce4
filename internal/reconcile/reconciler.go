// Package reconcile audits on-chain escrow creations against the backend's
// cash link records. A creation with no stored claim code means the sender's
// app died between mining and persistence; the funds are locked and the
// secret is gone, so the gap is recorded for operator follow-up.
package reconcile

import (
	"context"
	"time"

	"github.com/mezo-lite/internal/chain"
	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/models"
)

const (
	defaultInterval    = 5 * time.Minute
	defaultBlockWindow = 2000
	maxFilterSpan      = 500
)

// EventSource reads escrow creation events from the chain
type EventSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterCashlinkCreated(ctx context.Context, fromBlock, toBlock uint64) ([]chain.CashlinkCreatedEvent, error)
}

// OrphanStore checks and records cash link transaction hashes
type OrphanStore interface {
	KnownTransactionHashes(ctx context.Context, hashes []string) (map[string]bool, error)
	RecordOrphan(ctx context.Context, orphan *models.CashlinkOrphan) error
}

// Reconciler periodically scans a trailing block window for CashlinkCreated
// events and records the ones no backend row accounts for.
type Reconciler struct {
	source      EventSource
	store       OrphanStore
	interval    time.Duration
	blockWindow uint64
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithInterval overrides the scan cadence
func WithInterval(interval time.Duration) Option {
	return func(r *Reconciler) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithBlockWindow overrides the trailing window size
func WithBlockWindow(blocks uint64) Option {
	return func(r *Reconciler) {
		if blocks > 0 {
			r.blockWindow = blocks
		}
	}
}

// NewReconciler creates a reconciler with the default cadence and window
func NewReconciler(source EventSource, store OrphanStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:      source,
		store:       store,
		interval:    defaultInterval,
		blockWindow: defaultBlockWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run scans on the configured cadence until the context is cancelled. The
// first scan runs immediately.
func (r *Reconciler) Run(ctx context.Context) {
	logger := logging.FromContext(ctx)
	logger.WithFields(map[string]interface{}{
		"interval":     r.interval.String(),
		"block_window": r.blockWindow,
	}).Info("reconciler started")

	if err := r.ScanOnce(ctx); err != nil {
		logger.WithError(err).Error("reconcile scan failed")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.ScanOnce(ctx); err != nil {
				logger.WithError(err).Error("reconcile scan failed")
			}
		}
	}
}

// ScanOnce runs a single pass over the trailing block window
func (r *Reconciler) ScanOnce(ctx context.Context) error {
	head, err := r.source.BlockNumber(ctx)
	if err != nil {
		return err
	}

	fromBlock := uint64(0)
	if head > r.blockWindow {
		fromBlock = head - r.blockWindow
	}

	events, err := r.collectEvents(ctx, fromBlock, head)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	hashes := make([]string, 0, len(events))
	byHash := make(map[string]chain.CashlinkCreatedEvent, len(events))
	for _, event := range events {
		hash := event.TransactionHash.Hex()
		hashes = append(hashes, hash)
		byHash[hash] = event
	}

	known, err := r.store.KnownTransactionHashes(ctx, hashes)
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx)
	orphans := 0
	for hash, event := range byHash {
		if known[hash] {
			continue
		}

		orphan := &models.CashlinkOrphan{
			TransactionHash: hash,
			SenderAddress:   event.Sender.Hex(),
			Amount:          event.Amount.String(),
			BlockNumber:     event.BlockNumber,
			SeenAt:          time.Now(),
		}
		if err := r.store.RecordOrphan(ctx, orphan); err != nil {
			logger.WithError(err).WithField("tx_hash", hash).Error("failed to record orphaned cashlink")
			continue
		}

		orphans++
		logger.WithFields(map[string]interface{}{
			"tx_hash": hash,
			"sender":  orphan.SenderAddress,
			"amount":  orphan.Amount,
			"block":   orphan.BlockNumber,
		}).Warn("cashlink created on-chain with no stored claim code")
	}

	logger.WithFields(map[string]interface{}{
		"from_block": fromBlock,
		"to_block":   head,
		"events":     len(events),
		"orphans":    orphans,
	}).Info("reconcile scan complete")

	return nil
}

// collectEvents splits the window into filter-sized chunks. RPC providers
// cap the span a single eth_getLogs may cover.
func (r *Reconciler) collectEvents(ctx context.Context, fromBlock, toBlock uint64) ([]chain.CashlinkCreatedEvent, error) {
	var all []chain.CashlinkCreatedEvent

	for start := fromBlock; start <= toBlock; start += maxFilterSpan + 1 {
		end := start + maxFilterSpan
		if end > toBlock {
			end = toBlock
		}

		events, err := r.source.FilterCashlinkCreated(ctx, start, end)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)

		if end == toBlock {
			break
		}
	}

	return all, nil
}
