package solana

import (
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// Transfer is a native SOL transfer decoded from a System Program instruction.
type Transfer struct {
	Source      string
	Destination string
	Lamports    uint64
}

// Record represents a parsed Solana transaction.
// This is our domain model, independent of the RPC response format.
type Record struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
	Transfers []Transfer
	Memo      *string // parsed from memo program instructions
	Err       *string // nil if transaction succeeded, contains error message if failed
}

// LamportsTo sums the lamports of every transfer whose destination is address.
func (r *Record) LamportsTo(address string) uint64 {
	var total uint64
	for _, t := range r.Transfers {
		if t.Destination == address {
			total += t.Lamports
		}
	}
	return total
}

// Commitment levels accepted by AwaitConfirmation.
const (
	CommitmentProcessed = rpc.CommitmentProcessed
	CommitmentConfirmed = rpc.CommitmentConfirmed
	CommitmentFinalized = rpc.CommitmentFinalized
)

// commitmentRank orders confirmation statuses so that a transaction that is
// already finalized also satisfies a request for "confirmed".
func commitmentRank(status string) int {
	switch status {
	case string(rpc.ConfirmationStatusProcessed):
		return 1
	case string(rpc.ConfirmationStatusConfirmed):
		return 2
	case string(rpc.ConfirmationStatusFinalized):
		return 3
	default:
		return 0
	}
}

// commitmentReached reports whether status satisfies the wanted commitment.
func commitmentReached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	return commitmentRank(string(status)) >= commitmentRank(string(want)) && commitmentRank(string(status)) > 0
}
