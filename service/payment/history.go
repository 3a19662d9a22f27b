package payment

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/brojonat/solpay/service/db"
)

// History records confirmed submissions.
type History interface {
	Append(ctx context.Context, r Receipt) error

	// Recent returns up to limit receipts, newest first.
	Recent(ctx context.Context, limit int) ([]Receipt, error)
}

// MemoryHistory keeps receipts in process memory. It is the default when no
// database is configured.
type MemoryHistory struct {
	mu       sync.RWMutex
	receipts []Receipt
	max      int
}

// NewMemoryHistory returns a history that retains at most max receipts.
// A non-positive max keeps everything.
func NewMemoryHistory(max int) *MemoryHistory {
	return &MemoryHistory{max: max}
}

func (h *MemoryHistory) Append(_ context.Context, r Receipt) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.receipts = append(h.receipts, r)
	if h.max > 0 && len(h.receipts) > h.max {
		h.receipts = h.receipts[len(h.receipts)-h.max:]
	}
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]Receipt, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.receipts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Receipt, 0, n)
	for i := len(h.receipts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.receipts[i])
	}
	return out, nil
}

// ReceiptStore is the subset of *db.Store used by StoreHistory.
type ReceiptStore interface {
	CreateReceipt(ctx context.Context, params db.CreateReceiptParams) (*db.Receipt, error)
	ListReceipts(ctx context.Context, limit int32) ([]*db.Receipt, error)
}

// StoreHistory persists receipts in Postgres.
type StoreHistory struct {
	store ReceiptStore
}

// NewStoreHistory wraps a receipt store.
func NewStoreHistory(store ReceiptStore) *StoreHistory {
	return &StoreHistory{store: store}
}

func (h *StoreHistory) Append(ctx context.Context, r Receipt) error {
	if r.GrossLamports > math.MaxInt64 {
		return fmt.Errorf("failed to store receipt %s: amount %d lamports out of range", r.Signature, r.GrossLamports)
	}
	params := db.CreateReceiptParams{
		Signature:          r.Signature,
		Kind:               string(r.Kind),
		Payer:              r.Payer,
		Recipient:          r.Recipient,
		GrossLamports:      int64(r.GrossLamports),
		NetLamports:        int64(r.NetLamports),
		CommissionLamports: int64(r.CommissionLamports),
		CreatedAt:          r.CreatedAt,
	}
	if r.Note != "" {
		params.Note = &r.Note
	}
	if r.RequestID != "" {
		params.RequestID = &r.RequestID
	}
	if _, err := h.store.CreateReceipt(ctx, params); err != nil {
		return fmt.Errorf("failed to store receipt %s: %w", r.Signature, err)
	}
	return nil
}

func (h *StoreHistory) Recent(ctx context.Context, limit int) ([]Receipt, error) {
	if limit <= 0 || limit > math.MaxInt32 {
		limit = math.MaxInt32
	}
	rows, err := h.store.ListReceipts(ctx, int32(limit))
	if err != nil {
		return nil, err
	}

	out := make([]Receipt, 0, len(rows))
	for _, row := range rows {
		r := Receipt{
			Kind:               Kind(row.Kind),
			Status:             StatusConfirmed,
			Signature:          row.Signature,
			Payer:              row.Payer,
			Recipient:          row.Recipient,
			GrossLamports:      uint64(row.GrossLamports),
			NetLamports:        uint64(row.NetLamports),
			CommissionLamports: uint64(row.CommissionLamports),
			CreatedAt:          row.CreatedAt,
		}
		if row.Note != nil {
			r.Note = *row.Note
		}
		if row.RequestID != nil {
			r.RequestID = *row.RequestID
		}
		out = append(out, r)
	}
	return out, nil
}
