package payment

import (
	"time"
)

// Kind distinguishes payments from payment requests.
type Kind string

const (
	KindPayment Kind = "payment"
	KindRequest Kind = "request"
)

// Receipt is the outcome of one form submission. For requests, Payer is the
// requester that signed the marker transaction and Recipient is the wallet
// being asked to pay; the lamport fields then carry the requested amount.
type Receipt struct {
	Kind      Kind   `json:"kind"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
	Signature string `json:"signature,omitempty"`

	Payer     string `json:"payer,omitempty"`
	Recipient string `json:"recipient,omitempty"`

	GrossLamports      uint64 `json:"gross_lamports"`
	NetLamports        uint64 `json:"net_lamports"`
	CommissionLamports uint64 `json:"commission_lamports"`

	Note       string `json:"note,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	PaymentURL string `json:"payment_url,omitempty"`
	QRCode     string `json:"qr_code,omitempty"` // base64 PNG

	CreatedAt time.Time `json:"created_at"`
}

// advance moves the receipt to the next status if the transition is legal.
func (r *Receipt) advance(to Status) bool {
	if !r.Status.CanTransition(to) {
		return false
	}
	r.Status = to
	return true
}
