// Package dashboard aggregates the commission received by the admin wallet
// from its recent transaction history.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solpay/service/metrics"
	"github.com/brojonat/solpay/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Ledger is the read side of the ledger client.
type Ledger interface {
	RecentSignatures(ctx context.Context, address solanago.PublicKey, limit int) ([]solanago.Signature, error)
	TransactionDetail(ctx context.Context, sig solanago.Signature) (*solana.Record, error)
}

// Config controls what a snapshot covers and how it is paged.
type Config struct {
	AdminAddress   solanago.PublicKey
	SignatureLimit int // most recent signatures fetched per snapshot
	PageSize       int
	Concurrency    int // max in-flight detail fetches
}

const defaultPageSize = 4

// DefaultConfig returns the production defaults for the given admin wallet.
func DefaultConfig(admin solanago.PublicKey) Config {
	return Config{
		AdminAddress:   admin,
		SignatureLimit: 50,
		PageSize:       defaultPageSize,
		Concurrency:    8,
	}
}

// Result is the outcome of one detail fetch. Present is false when the fetch
// failed or the node returned nothing.
type Result struct {
	Record  *solana.Record
	Present bool
}

// Aggregator builds commission snapshots from the ledger.
type Aggregator struct {
	cfg     Config
	ledger  Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAggregator creates an aggregator. m may be nil.
func NewAggregator(cfg Config, ledger Ledger, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Aggregator{
		cfg:     cfg,
		ledger:  ledger,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Load fetches the admin wallet's recent signatures and their details and
// returns a new snapshot. Entries follow the signature order (newest first).
// A failed signature listing fails the load; a failed detail fetch only
// drops that transaction.
func (a *Aggregator) Load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	sigs, err := a.ledger.RecentSignatures(ctx, a.cfg.AdminAddress, a.cfg.SignatureLimit)
	if err != nil {
		a.record("error", start, 0, 0)
		return nil, fmt.Errorf("failed to list admin signatures: %w", err)
	}

	results, err := a.FetchDetails(ctx, sigs)
	if err != nil {
		a.record("error", start, 0, 0)
		return nil, err
	}

	admin := a.cfg.AdminAddress.String()
	snap := &Snapshot{
		ID:        uuid.New().String(),
		FetchedAt: a.now(),
		Entries:   make([]Entry, 0, len(results)),
	}
	for _, res := range results {
		if !res.Present {
			snap.Dropped++
			continue
		}
		entry := entryFor(res.Record, admin)
		snap.Entries = append(snap.Entries, entry)
		snap.TotalLamports += entry.Lamports
	}

	a.logger.InfoContext(ctx, "dashboard snapshot loaded",
		"snapshot_id", snap.ID,
		"signatures", len(sigs),
		"entries", len(snap.Entries),
		"dropped", snap.Dropped,
		"total_lamports", snap.TotalLamports,
		"duration", time.Since(start),
	)
	a.record("success", start, len(snap.Entries), snap.Dropped)
	return snap, nil
}

// FetchDetails fetches every signature's detail with at most
// Config.Concurrency requests in flight. results[i] corresponds to sigs[i].
// Only cancellation of ctx is reported as an error.
func (a *Aggregator) FetchDetails(ctx context.Context, sigs []solanago.Signature) ([]Result, error) {
	results := make([]Result, len(sigs))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, sig := range sigs {
		g.Go(func() error {
			rec, err := a.ledger.TransactionDetail(ctx, sig)
			if err != nil {
				a.logger.WarnContext(ctx, "dropping transaction detail",
					"signature", sig.String(),
					"error", err,
				)
				return nil
			}
			if rec == nil {
				a.logger.DebugContext(ctx, "no transaction detail", "signature", sig.String())
				return nil
			}
			results[i] = Result{Record: rec, Present: true}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("detail fetch interrupted: %w", err)
	}
	return results, nil
}

func (a *Aggregator) record(status string, start time.Time, entries, dropped int) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordDashboardLoad(status, time.Since(start).Seconds(), entries, dropped)
}

// entryFor sums the transfers a record sent to admin. A transaction that
// failed on chain moved nothing and yields a zero entry.
func entryFor(rec *solana.Record, admin string) Entry {
	e := Entry{
		Signature: rec.Signature,
		BlockTime: rec.BlockTime,
	}
	if !rec.BlockTime.IsZero() {
		e.Date = rec.BlockTime.UTC().Format(DateLayout)
	}
	if rec.Err == nil {
		e.Lamports = rec.LamportsTo(admin)
	}
	return e
}
