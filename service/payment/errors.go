package payment

import (
	"errors"

	"github.com/brojonat/solpay/service/wallet"
)

// User-facing messages.
const (
	MsgPaymentSuccess = "Payment successful!"
	MsgPaymentFailure = "Payment failed. Try again."
	MsgRequestSuccess = "Payment request sent successfully!"
	MsgRequestFailure = "Failed to send request. Try again."
	MsgRequestMissing = "Please enter recipient and amount!"
	MsgConnectWallet  = "Please connect your wallet."
	MsgInvalidAmount  = "Please enter a valid amount greater than zero."
	MsgInvalidAddress = "Please enter a valid recipient address."
	MsgNoteTooLong    = "Note is too long."
	MsgInvalidNote    = "Note contains invalid characters."
)

var (
	// ErrNotConnected is returned when no wallet identity is available.
	ErrNotConnected = wallet.ErrNotConnected

	// ErrInvalidAmount is returned for empty, malformed or non-positive amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidRecipient is returned for empty or malformed addresses.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrInvalidNote is returned when a request note exceeds the memo size limit
	// or is not valid UTF-8.
	ErrInvalidNote = errors.New("invalid note")

	// ErrPaymentFailed wraps any failure after validation succeeded.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrRequestFailed wraps any payment-request failure after validation.
	ErrRequestFailed = errors.New("payment request failed")
)

// ValidationError reports input that was rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}
