package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/solpay/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	sigs    []solanago.Signature
	sigsErr error
	details map[solanago.Signature]*solana.Record
	errs    map[solanago.Signature]error
	delay   time.Duration

	mu        sync.Mutex
	lastLimit int
	loads     int
	inflight  atomic.Int32
	maxFlight atomic.Int32
}

func (m *mockLedger) RecentSignatures(ctx context.Context, address solanago.PublicKey, limit int) ([]solanago.Signature, error) {
	m.mu.Lock()
	m.lastLimit = limit
	m.loads++
	m.mu.Unlock()
	if m.sigsErr != nil {
		return nil, m.sigsErr
	}
	return m.sigs, nil
}

func (m *mockLedger) TransactionDetail(ctx context.Context, sig solanago.Signature) (*solana.Record, error) {
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		cur := m.maxFlight.Load()
		if n <= cur || m.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err := m.errs[sig]; err != nil {
		return nil, err
	}
	return m.details[sig], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSig(b byte) solanago.Signature {
	var s solanago.Signature
	s[0] = b
	s[1] = 0xAA
	return s
}

// seed registers n transactions, each paying lamports*(i+1) to admin, one
// day apart starting at 2024-03-01.
func seed(admin solanago.PublicKey, n int, lamports uint64) *mockLedger {
	m := &mockLedger{
		details: make(map[solanago.Signature]*solana.Record),
		errs:    make(map[solanago.Signature]error),
	}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		sig := newSig(byte(i + 1))
		m.sigs = append(m.sigs, sig)
		m.details[sig] = &solana.Record{
			Signature: sig.String(),
			BlockTime: base.Add(time.Duration(i) * 24 * time.Hour),
			Transfers: []solana.Transfer{
				{Source: "payer", Destination: "someone-else", Lamports: 19 * lamports},
				{Source: "payer", Destination: admin.String(), Lamports: lamports * uint64(i+1)},
			},
		}
	}
	return m
}

func TestAggregator_Load(t *testing.T) {
	admin := solanago.NewWallet().PublicKey()
	ledger := seed(admin, 6, 1_000)
	agg := NewAggregator(DefaultConfig(admin), ledger, nil, testLogger())

	snap, err := agg.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50, ledger.lastLimit)
	assert.NotEmpty(t, snap.ID)
	require.Len(t, snap.Entries, 6)
	assert.Zero(t, snap.Dropped)

	// Order follows the signature list.
	for i, e := range snap.Entries {
		assert.Equal(t, ledger.sigs[i].String(), e.Signature)
		assert.Equal(t, uint64(1_000*(i+1)), e.Lamports)
	}
	assert.Equal(t, "2024-03-01", snap.Entries[0].Date)
	assert.Equal(t, "2024-03-06", snap.Entries[5].Date)

	assert.Equal(t, uint64(21_000), snap.TotalLamports)
	assert.Equal(t, Sum(snap.Entries), snap.TotalLamports)
	assert.InDelta(t, 0.000021, snap.TotalSOL(), 1e-12)
}

func TestAggregator_DropsMissingDetails(t *testing.T) {
	admin := solanago.NewWallet().PublicKey()
	ledger := seed(admin, 5, 1_000)
	ledger.details[ledger.sigs[2]] = nil

	agg := NewAggregator(DefaultConfig(admin), ledger, nil, testLogger())
	snap, err := agg.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Entries, 4)
	assert.Equal(t, 1, snap.Dropped)
	for _, e := range snap.Entries {
		assert.NotEqual(t, ledger.sigs[2].String(), e.Signature)
	}
	assert.Equal(t, uint64(1_000+2_000+4_000+5_000), snap.TotalLamports)
}

func TestAggregator_DropsFailedDetails(t *testing.T) {
	admin := solanago.NewWallet().PublicKey()
	ledger := seed(admin, 3, 1_000)
	ledger.errs[ledger.sigs[0]] = errors.New("rpc 429")

	agg := NewAggregator(DefaultConfig(admin), ledger, nil, testLogger())
	snap, err := agg.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 2)
	assert.Equal(t, 1, snap.Dropped)
}

func TestAggregator_SignatureListFailure(t *testing.T) {
	admin := solanago.NewWallet().PublicKey()
	ledger := seed(admin, 3, 1_000)
	ledger.sigsErr = errors.New("node unavailable")

	agg := NewAggregator(DefaultConfig(admin), ledger, nil, testLogger())
	_, err := agg.Load(context.Background())
	assert.ErrorIs(t, err, ledger.sigsErr)
}

func TestAggregator_ZeroAndFailedTransactions(t *testing.T) {
	admin := solanago.NewWallet().PublicKey()
	ledger := seed(admin, 2, 1_000)

	// Outgoing transaction from admin: no commission, still listed.
	ledger.details[ledger.sigs[0]].Transfers = []solana.Transfer{
		{Source: admin.String(), Destination: "elsewhere", Lamports: 10},
	}
	// Failed on chain: nothing moved.
	msg := "InstructionError"
	ledger.details[ledger.sigs[1]].Err = &msg

	agg := NewAggregator(DefaultConfig(admin), ledger, nil, testLogger())
	snap, err := agg.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)
	assert.Zero(t, snap.Entries[0].Lamports)
	assert.Zero(t, snap.Entries[1].Lamports)
	assert.Zero(t, snap.TotalLamports)
}

func TestAggregator_BoundedConcurrency(t *testing.T) {
	admin := solanago.NewWallet().PublicKey()
	ledger := seed(admin, 20, 1)
	ledger.delay = 5 * time.Millisecond

	cfg := DefaultConfig(admin)
	cfg.Concurrency = 3
	agg := NewAggregator(cfg, ledger, nil, testLogger())

	snap, err := agg.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 20)
	assert.LessOrEqual(t, ledger.maxFlight.Load(), int32(3))
}

func TestAggregator_FetchDetailsCancelled(t *testing.T) {
	admin := solanago.NewWallet().PublicKey()
	ledger := seed(admin, 3, 1)
	agg := NewAggregator(DefaultConfig(admin), ledger, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := agg.FetchDetails(ctx, ledger.sigs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchDetails_ResultPerSignature(t *testing.T) {
	admin := solanago.NewWallet().PublicKey()
	ledger := seed(admin, 4, 1)
	ledger.errs[ledger.sigs[1]] = errors.New("boom")
	ledger.details[ledger.sigs[3]] = nil

	agg := NewAggregator(DefaultConfig(admin), ledger, nil, testLogger())
	results, err := agg.FetchDetails(context.Background(), ledger.sigs)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.True(t, results[0].Present)
	assert.False(t, results[1].Present)
	assert.True(t, results[2].Present)
	assert.False(t, results[3].Present)
	assert.Nil(t, results[1].Record)
}
