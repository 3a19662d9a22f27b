package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solpay/service/metrics"
	natspkg "github.com/brojonat/solpay/service/nats"
	"github.com/brojonat/solpay/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Ledger is the read side of the Solana client used by the activities.
type Ledger interface {
	RecentSignatures(ctx context.Context, address solanago.PublicKey, limit int) ([]solanago.Signature, error)
	TransactionDetail(ctx context.Context, sig solanago.Signature) (*solana.Record, error)
}

// Activities holds the dependencies of the settlement activities.
type Activities struct {
	ledger    Ledger
	publisher natspkg.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates the activities. publisher and m may be nil.
func NewActivities(ledger Ledger, publisher natspkg.Publisher, m *metrics.Metrics, logger *slog.Logger) *Activities {
	return &Activities{
		ledger:    ledger,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// FindSettlementInput contains parameters for the FindSettlement activity.
type FindSettlementInput struct {
	RequestID string `json:"request_id"`
	Requester string `json:"requester"`
	Lamports  uint64 `json:"lamports"`
	Limit     int    `json:"limit"`
}

// FindSettlementResult contains the matching transaction, if any.
type FindSettlementResult struct {
	Found     bool      `json:"found"`
	Signature string    `json:"signature,omitempty"`
	Payer     string    `json:"payer,omitempty"`
	Lamports  uint64    `json:"lamports,omitempty"`
	BlockTime time.Time `json:"block_time,omitempty"`
}

// FindSettlement scans the requester's most recent transactions for one that
// settles the request.
func (a *Activities) FindSettlement(ctx context.Context, input FindSettlementInput) (*FindSettlementResult, error) {
	requester, err := solanago.PublicKeyFromBase58(input.Requester)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid requester address %q", input.Requester), "InvalidAddress", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSettlementLookup
	}

	sigs, err := a.ledger.RecentSignatures(ctx, requester, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}

	for i, sig := range sigs {
		activity.RecordHeartbeat(ctx, i)

		rec, err := a.ledger.TransactionDetail(ctx, sig)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch transaction %s: %w", sig, err)
		}
		if rec == nil || !settles(rec, input) {
			continue
		}

		a.logger.InfoContext(ctx, "found settlement",
			"request_id", input.RequestID,
			"signature", rec.Signature,
		)
		return &FindSettlementResult{
			Found:     true,
			Signature: rec.Signature,
			Payer:     payerOf(rec, input.Requester),
			Lamports:  rec.LamportsTo(input.Requester),
			BlockTime: rec.BlockTime,
		}, nil
	}

	a.logger.DebugContext(ctx, "no settlement yet",
		"request_id", input.RequestID,
		"scanned", len(sigs),
	)
	return &FindSettlementResult{}, nil
}

// settles reports whether rec pays the request.
func settles(rec *solana.Record, input FindSettlementInput) bool {
	if rec.Err != nil || rec.Memo == nil {
		return false
	}
	if strings.TrimSpace(*rec.Memo) != input.RequestID {
		return false
	}
	return rec.LamportsTo(input.Requester) >= input.Lamports
}

// payerOf returns the source of the first transfer into requester.
func payerOf(rec *solana.Record, requester string) string {
	for _, t := range rec.Transfers {
		if t.Destination == requester {
			return t.Source
		}
	}
	return ""
}

// RecordSettlementInput contains parameters for the RecordSettlement activity.
type RecordSettlementInput struct {
	RequestID string    `json:"request_id"`
	Requester string    `json:"requester"`
	Payer     string    `json:"payer"`
	Signature string    `json:"signature"`
	Lamports  uint64    `json:"lamports"`
	SettledAt time.Time `json:"settled_at"`
}

// RecordSettlement publishes the settlement event and counts it.
func (a *Activities) RecordSettlement(ctx context.Context, input RecordSettlementInput) error {
	if a.metrics != nil {
		a.metrics.RecordSettlement(string(SettlementSettled))
	}
	if a.publisher == nil {
		return nil
	}

	event := &natspkg.PaymentEvent{
		Kind:          natspkg.KindSettled,
		Signature:     input.Signature,
		Payer:         input.Payer,
		Recipient:     input.Requester,
		GrossLamports: input.Lamports,
		NetLamports:   input.Lamports,
		RequestID:     input.RequestID,
		ConfirmedAt:   input.SettledAt,
	}
	if err := a.publisher.PublishPayment(ctx, event); err != nil {
		return fmt.Errorf("failed to publish settlement: %w", err)
	}
	return nil
}

// RecordExpiry counts a request that was never paid.
func (a *Activities) RecordExpiry(ctx context.Context, requestID string) error {
	a.logger.InfoContext(ctx, "payment request expired", "request_id", requestID)
	if a.metrics != nil {
		a.metrics.RecordSettlement(string(SettlementExpired))
	}
	return nil
}
