package payment

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/brojonat/solpay/service/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistory(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(3)

	for _, sig := range []string{"a", "b", "c", "d"} {
		require.NoError(t, h.Append(ctx, Receipt{Signature: sig}))
	}

	all, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "d", all[0].Signature)
	assert.Equal(t, "b", all[2].Signature)

	two, err := h.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

type fakeReceiptStore struct {
	created []db.CreateReceiptParams
}

func (f *fakeReceiptStore) CreateReceipt(ctx context.Context, params db.CreateReceiptParams) (*db.Receipt, error) {
	f.created = append(f.created, params)
	return &db.Receipt{Signature: params.Signature}, nil
}

func (f *fakeReceiptStore) ListReceipts(ctx context.Context, limit int32) ([]*db.Receipt, error) {
	out := make([]*db.Receipt, 0)
	for i := len(f.created) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		p := f.created[i]
		out = append(out, &db.Receipt{
			Signature:          p.Signature,
			Kind:               p.Kind,
			Payer:              p.Payer,
			Recipient:          p.Recipient,
			GrossLamports:      p.GrossLamports,
			NetLamports:        p.NetLamports,
			CommissionLamports: p.CommissionLamports,
			Note:               p.Note,
			RequestID:          p.RequestID,
			CreatedAt:          p.CreatedAt,
		})
	}
	return out, nil
}

func TestStoreHistory(t *testing.T) {
	ctx := context.Background()
	store := &fakeReceiptStore{}
	h := NewStoreHistory(store)

	now := time.Now().UTC()
	require.NoError(t, h.Append(ctx, Receipt{
		Kind:               KindPayment,
		Signature:          "pay",
		GrossLamports:      100,
		NetLamports:        95,
		CommissionLamports: 5,
		CreatedAt:          now,
	}))
	require.NoError(t, h.Append(ctx, Receipt{
		Kind:      KindRequest,
		Signature: "req",
		Note:      "lunch",
		RequestID: "id-1",
		CreatedAt: now,
	}))

	require.Nil(t, store.created[0].Note)
	require.NotNil(t, store.created[1].Note)
	assert.Equal(t, "lunch", *store.created[1].Note)

	got, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "req", got[0].Signature)
	assert.Equal(t, "id-1", got[0].RequestID)
	assert.Equal(t, StatusConfirmed, got[1].Status)
	assert.Equal(t, uint64(5), got[1].CommissionLamports)
}

func TestStoreHistory_RejectsOutOfRangeAmount(t *testing.T) {
	store := &fakeReceiptStore{}
	h := NewStoreHistory(store)

	err := h.Append(context.Background(), Receipt{
		Kind:          KindPayment,
		Signature:     "huge",
		GrossLamports: math.MaxInt64 + 1,
	})
	require.Error(t, err)
	assert.Empty(t, store.created)
}
