package reconcile

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mezo-lite/internal/chain"
	"github.com/mezo-lite/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventSource struct {
	head      uint64
	events    []chain.CashlinkCreatedEvent
	spans     [][2]uint64
	filterErr error
}

func (f *fakeEventSource) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeEventSource) FilterCashlinkCreated(ctx context.Context, fromBlock, toBlock uint64) ([]chain.CashlinkCreatedEvent, error) {
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	f.spans = append(f.spans, [2]uint64{fromBlock, toBlock})

	var out []chain.CashlinkCreatedEvent
	for _, e := range f.events {
		if e.BlockNumber >= fromBlock && e.BlockNumber <= toBlock {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeOrphanStore struct {
	known     map[string]bool
	recorded  []*models.CashlinkOrphan
	recordErr error
}

func (f *fakeOrphanStore) KnownTransactionHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, h := range hashes {
		if f.known[h] {
			out[h] = true
		}
	}
	return out, nil
}

func (f *fakeOrphanStore) RecordOrphan(ctx context.Context, orphan *models.CashlinkOrphan) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, orphan)
	return nil
}

func createdEvent(txHash string, block uint64) chain.CashlinkCreatedEvent {
	return chain.CashlinkCreatedEvent{
		Sender:          common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Amount:          big.NewInt(1000),
		TransactionHash: common.HexToHash(txHash),
		BlockNumber:     block,
	}
}

func TestScanOnce_RecordsOnlyUnknownEvents(t *testing.T) {
	knownEvent := createdEvent("0xaa", 950)
	orphanEvent := createdEvent("0xbb", 960)

	source := &fakeEventSource{
		head:   1000,
		events: []chain.CashlinkCreatedEvent{knownEvent, orphanEvent},
	}
	store := &fakeOrphanStore{
		known: map[string]bool{knownEvent.TransactionHash.Hex(): true},
	}

	r := NewReconciler(source, store)
	require.NoError(t, r.ScanOnce(context.Background()))

	require.Len(t, store.recorded, 1)
	orphan := store.recorded[0]
	assert.Equal(t, orphanEvent.TransactionHash.Hex(), orphan.TransactionHash)
	assert.Equal(t, "1000", orphan.Amount)
	assert.Equal(t, uint64(960), orphan.BlockNumber)
	assert.False(t, orphan.SeenAt.IsZero())
}

func TestScanOnce_NoEventsNoWrites(t *testing.T) {
	source := &fakeEventSource{head: 1000}
	store := &fakeOrphanStore{}

	r := NewReconciler(source, store)
	require.NoError(t, r.ScanOnce(context.Background()))
	assert.Empty(t, store.recorded)
}

func TestScanOnce_WindowNearGenesis(t *testing.T) {
	source := &fakeEventSource{head: 100}
	r := NewReconciler(source, &fakeOrphanStore{})

	require.NoError(t, r.ScanOnce(context.Background()))

	// Window would underflow; scan starts at block 0
	require.NotEmpty(t, source.spans)
	assert.Equal(t, uint64(0), source.spans[0][0])
}

func TestScanOnce_ChunksLargeWindows(t *testing.T) {
	source := &fakeEventSource{head: 2000}
	r := NewReconciler(source, &fakeOrphanStore{}, WithBlockWindow(2000))

	require.NoError(t, r.ScanOnce(context.Background()))

	require.Greater(t, len(source.spans), 1)
	for _, span := range source.spans {
		assert.LessOrEqual(t, span[1]-span[0], uint64(maxFilterSpan))
	}
	assert.Equal(t, uint64(2000), source.spans[len(source.spans)-1][1])
}

func TestScanOnce_PropagatesFilterErrors(t *testing.T) {
	source := &fakeEventSource{head: 1000, filterErr: errors.New("rpc down")}
	r := NewReconciler(source, &fakeOrphanStore{})

	assert.Error(t, r.ScanOnce(context.Background()))
}

func TestScanOnce_KeepsGoingPastRecordFailures(t *testing.T) {
	source := &fakeEventSource{
		head:   1000,
		events: []chain.CashlinkCreatedEvent{createdEvent("0xcc", 990)},
	}
	store := &fakeOrphanStore{recordErr: errors.New("db down")}

	r := NewReconciler(source, store)
	assert.NoError(t, r.ScanOnce(context.Background()))
}
