package nats

import (
	"fmt"
	"time"
)

// Event kinds.
const (
	KindSubmitted = "submitted"
	KindRequested = "requested"
	KindSettled   = "settled"
)

// PaymentEvent is published for every confirmed payment or payment request.
// Payments go to "payments.submitted.{recipient}", requests to
// "payments.requested.{target}" and settled requests to
// "payments.settled.{requester}".
type PaymentEvent struct {
	Kind      string `json:"kind"`
	Signature string `json:"signature"`

	// Parties
	Payer     string `json:"payer"`
	Recipient string `json:"recipient"`

	// Amounts in lamports
	GrossLamports      uint64 `json:"gross_lamports"`
	NetLamports        uint64 `json:"net_lamports"`
	CommissionLamports uint64 `json:"commission_lamports"`

	// Request metadata, empty for plain payments
	RequestID string `json:"request_id,omitempty"`
	Note      string `json:"note,omitempty"`

	ConfirmedAt time.Time `json:"confirmed_at"`
	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the JetStream subject the event is published on.
func (e *PaymentEvent) Subject() string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, e.Kind, e.Recipient)
}
