package dashboard

import (
	"time"

	"github.com/brojonat/solpay/service/solana"
)

// DateLayout is the calendar-day format used for entry dates and filters.
const DateLayout = "2006-01-02"

// Entry is the commission the admin wallet received in one transaction.
type Entry struct {
	Signature string    `json:"signature"`
	Date      string    `json:"date"`
	BlockTime time.Time `json:"block_time"`
	Lamports  uint64    `json:"lamports"`
}

// SOL returns the entry amount in SOL.
func (e Entry) SOL() float64 {
	return solana.LamportsToSOL(e.Lamports)
}

// Snapshot is one fetch of the admin history. It is never mutated after
// Load returns, so filtering and paging can share it.
type Snapshot struct {
	ID            string    `json:"id"`
	FetchedAt     time.Time `json:"fetched_at"`
	Entries       []Entry   `json:"entries"`
	TotalLamports uint64    `json:"total_lamports"`
	Dropped       int       `json:"dropped"`
}

// TotalSOL returns the snapshot total in SOL.
func (s *Snapshot) TotalSOL() float64 {
	return solana.LamportsToSOL(s.TotalLamports)
}

// Sum recomputes the total of entries.
func Sum(entries []Entry) uint64 {
	var total uint64
	for _, e := range entries {
		total += e.Lamports
	}
	return total
}
