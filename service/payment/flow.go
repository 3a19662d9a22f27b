package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solpay/service/metrics"
	natspkg "github.com/brojonat/solpay/service/nats"
	"github.com/brojonat/solpay/service/solana"
	"github.com/brojonat/solpay/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
)

// Ledger is the part of the ledger client the flows need.
type Ledger interface {
	LatestBlockhash(ctx context.Context) (solanago.Hash, error)
	AwaitConfirmation(ctx context.Context, sig solanago.Signature, commitment rpc.CommitmentType) error
}

// RequestTracker follows a confirmed payment request until it is paid.
type RequestTracker interface {
	TrackRequest(ctx context.Context, r Receipt) error
}

// Flow runs payments and payment requests on behalf of the connected wallet.
type Flow struct {
	cfg       Config
	ledger    Ledger
	wallet    wallet.Connector
	history   History
	publisher natspkg.Publisher
	tracker   RequestTracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewFlow creates a flow with an in-memory history and no event publisher.
func NewFlow(cfg Config, ledger Ledger, w wallet.Connector, logger *slog.Logger) *Flow {
	return &Flow{
		cfg:     cfg,
		ledger:  ledger,
		wallet:  w,
		history: NewMemoryHistory(1000),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithHistory replaces the receipt history.
func (f *Flow) WithHistory(h History) *Flow {
	f.history = h
	return f
}

// WithPublisher publishes an event for every confirmed submission.
func (f *Flow) WithPublisher(p natspkg.Publisher) *Flow {
	f.publisher = p
	return f
}

// WithTracker hands every confirmed payment request to t.
func (f *Flow) WithTracker(t RequestTracker) *Flow {
	f.tracker = t
	return f
}

// WithMetrics enables flow metrics.
func (f *Flow) WithMetrics(m *metrics.Metrics) *Flow {
	f.metrics = m
	return f
}

// History returns the receipt history.
func (f *Flow) History() History {
	return f.history
}

// PayInput is the payment form.
type PayInput struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// Pay sends Amount SOL to Recipient, routing the commission share to the
// admin wallet in the same transaction. It always returns a receipt; err is
// a *ValidationError when the input was rejected, or wraps ErrPaymentFailed.
func (f *Flow) Pay(ctx context.Context, in PayInput) (*Receipt, error) {
	r := &Receipt{Kind: KindPayment, Status: StatusIdle, CreatedAt: f.now()}
	r.advance(StatusValidating)

	payer, recipient, gross, verr := f.validatePayment(in)
	if verr != nil {
		return f.reject(ctx, r, verr)
	}

	split, err := Split(gross, f.cfg.CommissionBps)
	if err != nil {
		return f.reject(ctx, r, invalid("amount", MsgInvalidAmount, fmt.Errorf("%w: %w", ErrInvalidAmount, err)))
	}

	r.Payer = payer.String()
	r.Recipient = recipient.String()
	r.GrossLamports = split.Gross
	r.NetLamports = split.Net
	r.CommissionLamports = split.Commission
	r.advance(StatusSubmitting)

	f.logger.InfoContext(ctx, "submitting payment",
		"payer", r.Payer,
		"recipient", r.Recipient,
		"gross_lamports", split.Gross,
		"commission_lamports", split.Commission,
	)

	instructions := []solanago.Instruction{
		system.NewTransferInstruction(split.Net, payer, recipient).Build(),
		system.NewTransferInstruction(split.Commission, payer, f.cfg.AdminAddress).Build(),
	}
	sig, err := f.submit(ctx, payer, instructions, f.cfg.PaymentCommitment)
	if err != nil {
		return f.fail(ctx, r, MsgPaymentFailure, fmt.Errorf("%w: %w", ErrPaymentFailed, err))
	}

	r.Signature = sig.String()
	r.Message = MsgPaymentSuccess
	r.advance(StatusConfirmed)
	f.confirmed(ctx, r, split.Gross, split.Commission)
	return r, nil
}

func (f *Flow) validatePayment(in PayInput) (solanago.PublicKey, solanago.PublicKey, uint64, *ValidationError) {
	payer, ok := f.wallet.Identity()
	if !ok {
		return solanago.PublicKey{}, solanago.PublicKey{}, 0, invalid("wallet", MsgConnectWallet, ErrNotConnected)
	}

	recipient, verr := parseAddress("recipient", in.Recipient, MsgInvalidAddress)
	if verr != nil {
		return solanago.PublicKey{}, solanago.PublicKey{}, 0, verr
	}

	gross, verr := parseAmount(in.Amount, MsgInvalidAmount)
	if verr != nil {
		return solanago.PublicKey{}, solanago.PublicKey{}, 0, verr
	}
	return payer, recipient, gross, nil
}

// submit builds, signs and sends a transaction paid for by payer and waits
// for the requested commitment.
func (f *Flow) submit(ctx context.Context, payer solanago.PublicKey, instructions []solanago.Instruction, commitment rpc.CommitmentType) (solanago.Signature, error) {
	blockhash, err := f.ledger.LatestBlockhash(ctx)
	if err != nil {
		return solanago.Signature{}, err
	}

	tx, err := solanago.NewTransaction(instructions, blockhash, solanago.TransactionPayer(payer))
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	sig, err := f.wallet.SignAndSend(ctx, tx)
	if err != nil {
		return solanago.Signature{}, err
	}

	if err := f.ledger.AwaitConfirmation(ctx, sig, commitment); err != nil {
		return sig, err
	}
	return sig, nil
}

// reject returns a receipt for input that never left validation.
func (f *Flow) reject(ctx context.Context, r *Receipt, verr *ValidationError) (*Receipt, error) {
	r.advance(StatusIdle)
	r.Message = verr.Message
	f.logger.DebugContext(ctx, "submission rejected",
		"kind", r.Kind,
		"field", verr.Field,
		"error", verr.Err,
	)
	if f.metrics != nil {
		f.metrics.RecordPayment(string(r.Kind), "invalid")
	}
	return r, verr
}

// fail marks a submitted receipt as failed. The cause is logged; the user
// only sees the generic message.
func (f *Flow) fail(ctx context.Context, r *Receipt, message string, err error) (*Receipt, error) {
	r.advance(StatusFailed)
	r.Message = message
	f.logger.ErrorContext(ctx, "submission failed",
		"kind", r.Kind,
		"payer", r.Payer,
		"recipient", r.Recipient,
		"error", err,
	)
	if f.metrics != nil {
		f.metrics.RecordPayment(string(r.Kind), "failed")
	}
	return r, err
}

// confirmed records a successful submission in history, metrics and the
// event stream. Side-channel failures are logged only.
func (f *Flow) confirmed(ctx context.Context, r *Receipt, moved, commission uint64) {
	f.logger.InfoContext(ctx, "submission confirmed",
		"kind", r.Kind,
		"signature", r.Signature,
	)

	if f.metrics != nil {
		f.metrics.RecordPayment(string(r.Kind), "confirmed")
		f.metrics.RecordPaymentLamports(string(r.Kind), moved, commission)
	}

	if f.history != nil {
		if err := f.history.Append(ctx, *r); err != nil {
			f.logger.WarnContext(ctx, "failed to record receipt",
				"signature", r.Signature,
				"error", err,
			)
		}
	}

	if f.publisher != nil {
		event := &natspkg.PaymentEvent{
			Kind:               natspkg.KindSubmitted,
			Signature:          r.Signature,
			Payer:              r.Payer,
			Recipient:          r.Recipient,
			GrossLamports:      r.GrossLamports,
			NetLamports:        r.NetLamports,
			CommissionLamports: r.CommissionLamports,
			RequestID:          r.RequestID,
			Note:               r.Note,
			ConfirmedAt:        f.now(),
		}
		if r.Kind == KindRequest {
			event.Kind = natspkg.KindRequested
		}
		if err := f.publisher.PublishPayment(ctx, event); err != nil {
			f.logger.WarnContext(ctx, "failed to publish payment event",
				"signature", r.Signature,
				"error", err,
			)
		}
	}

	if f.tracker != nil && r.Kind == KindRequest {
		if err := f.tracker.TrackRequest(ctx, *r); err != nil {
			f.logger.WarnContext(ctx, "failed to track payment request",
				"request_id", r.RequestID,
				"error", err,
			)
		}
	}
}

func parseAddress(field, s, message string) (solanago.PublicKey, *ValidationError) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solanago.PublicKey{}, invalid(field, message, ErrInvalidRecipient)
	}
	pk, err := solanago.PublicKeyFromBase58(s)
	if err != nil {
		return solanago.PublicKey{}, invalid(field, message, fmt.Errorf("%w: %w", ErrInvalidRecipient, err))
	}
	return pk, nil
}

func parseAmount(s, message string) (uint64, *ValidationError) {
	lamports, err := solana.ParseSOL(s)
	if err != nil {
		return 0, invalid("amount", message, fmt.Errorf("%w: %w", ErrInvalidAmount, err))
	}
	if lamports == 0 {
		return 0, invalid("amount", message, fmt.Errorf("%w: below one lamport", ErrInvalidAmount))
	}
	return lamports, nil
}
