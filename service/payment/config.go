// Package payment implements the commission-split payment flow and the
// on-chain payment-request flow.
package payment

import (
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Config holds the compiled-in parameters of both flows.
type Config struct {
	// AdminAddress receives the commission leg of every payment.
	AdminAddress solanago.PublicKey

	// CommissionBps is the commission rate in basis points (500 = 5%).
	CommissionBps uint64

	// MarkerLamports are the transfer amounts of a payment-request marker
	// transaction, one System Program transfer per entry.
	MarkerLamports []uint64

	// PaymentCommitment and RequestCommitment are the commitment levels the
	// flows wait for before reporting success.
	PaymentCommitment rpc.CommitmentType
	RequestCommitment rpc.CommitmentType

	// Label is shown by wallet apps that open a payment-request link.
	Label string

	// MaxNoteBytes bounds the optional note carried in a request memo.
	MaxNoteBytes int
}

// DefaultConfig returns the production defaults for the given admin wallet.
func DefaultConfig(admin solanago.PublicKey) Config {
	return Config{
		AdminAddress:      admin,
		CommissionBps:     500,
		MarkerLamports:    []uint64{5000, 1},
		PaymentCommitment: rpc.CommitmentConfirmed,
		RequestCommitment: rpc.CommitmentProcessed,
		Label:             "solpay",
		MaxNoteBytes:      180,
	}
}
