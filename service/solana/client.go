package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solpay/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)
}

var (
	// ErrConfirmationTimeout is returned when a transaction does not reach the
	// requested commitment before the client's confirmation timeout.
	ErrConfirmationTimeout = errors.New("timed out waiting for transaction confirmation")

	// ErrTransactionFailed is returned when the cluster reports an error for a
	// submitted transaction.
	ErrTransactionFailed = errors.New("transaction failed on chain")
)

const (
	defaultConfirmPollInterval = 500 * time.Millisecond
	defaultConfirmTimeout      = 60 * time.Second
)

// Client is the ledger client used by the payment flows and the dashboard.
// It wraps the RPC client with domain-specific operations, metrics and an
// optional client-side rate limit.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
	limiter  *rate.Limiter

	confirmPollInterval time.Duration
	confirmTimeout      time.Duration
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:                 rpcClient,
		logger:              logger,
		metrics:             m,
		endpoint:            endpoint,
		confirmPollInterval: defaultConfirmPollInterval,
		confirmTimeout:      defaultConfirmTimeout,
	}
}

// WithRateLimit caps outgoing RPC calls at rps requests per second.
// A non-positive rps disables limiting.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithConfirmation overrides how often signature statuses are polled and how
// long AwaitConfirmation waits before giving up.
func (c *Client) WithConfirmation(pollInterval, timeout time.Duration) *Client {
	if pollInterval > 0 {
		c.confirmPollInterval = pollInterval
	}
	if timeout > 0 {
		c.confirmTimeout = timeout
	}
	return c
}

// wait blocks until the rate limiter admits another call.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// record reports an RPC call outcome to metrics.
func (c *Client) record(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// RecentSignatures returns up to limit of the most recent transaction
// signatures touching address, newest first.
func (c *Client) RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"address", address.String(),
		"limit", limit,
	)

	start := time.Now()
	sigs, err := c.rpc.GetSignaturesForAddress(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	})
	c.record("GetSignaturesForAddress", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"address", address.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get signatures for %s: %w", address, err)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(sigs)))
	}

	out := make([]solana.Signature, 0, len(sigs))
	for _, s := range sigs {
		if s == nil {
			continue
		}
		out = append(out, s.Signature)
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"address", address.String(),
		"count", len(out),
	)
	return out, nil
}

// TransactionDetail fetches and decodes a single transaction.
// It returns (nil, nil) when the node has no record of the signature, which
// callers treat the same as a failed lookup.
func (c *Client) TransactionDetail(ctx context.Context, sig solana.Signature) (*Record, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	// Fetch full transaction details with support for versioned transactions
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, opts)
	c.record("GetTransaction", start, err)
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", sig, err)
	}
	if result == nil {
		return nil, nil
	}

	record, err := parseRecord(sig, result)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordTransactionParsed("error")
		}
		return nil, fmt.Errorf("failed to parse transaction %s: %w", sig, err)
	}
	if c.metrics != nil {
		c.metrics.RecordTransactionParsed("success")
	}
	return record, nil
}

// LatestBlockhash returns a recent blockhash to anchor a new transaction.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := c.wait(ctx); err != nil {
		return solana.Hash{}, err
	}

	start := time.Now()
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	c.record("GetLatestBlockhash", start, err)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if result == nil || result.Value == nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: empty response")
	}
	return result.Value.Blockhash, nil
}

// SendTransaction broadcasts a signed transaction and returns its signature.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := c.wait(ctx); err != nil {
		return solana.Signature{}, err
	}

	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	c.record("SendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.DebugContext(ctx, "transaction sent", "signature", sig.String())
	return sig, nil
}

// AwaitConfirmation polls the signature status until the transaction reaches
// the wanted commitment, reports an on-chain error, or the confirmation
// timeout elapses.
func (c *Client) AwaitConfirmation(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	started := time.Now()
	status := "error"
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordConfirmation(string(commitment), status, time.Since(started).Seconds())
		}
	}()

	ticker := time.NewTicker(c.confirmPollInterval)
	defer ticker.Stop()

	for {
		done, err := c.checkStatus(ctx, sig, commitment)
		if err != nil {
			return err
		}
		if done {
			status = "success"
			c.logger.DebugContext(ctx, "transaction confirmed",
				"signature", sig.String(),
				"commitment", commitment,
				"elapsed", time.Since(started),
			)
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				status = "timeout"
				return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkStatus performs a single getSignatureStatuses round trip.
func (c *Client) checkStatus(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}

	start := time.Now()
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	c.record("GetSignatureStatuses", start, err)
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		// The status endpoint is polled; a transient error is not terminal
		// while the context is still alive.
		c.logger.WarnContext(ctx, "failed to get signature status",
			"signature", sig.String(),
			"error", err,
		)
		return false, nil
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}

	st := out.Value[0]
	if st.Err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, st.Err)
	}
	return commitmentReached(st.ConfirmationStatus, commitment), nil
}
