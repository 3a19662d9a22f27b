package temporal

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// SettlementQuery returns the current *SettleRequestResult of a running
	// or finished settlement workflow.
	SettlementQuery = "settlement"

	defaultSettlementPoll    = 30 * time.Second
	defaultSettlementTimeout = 24 * time.Hour
	defaultSettlementLookup  = 25

	// Polls per run before the workflow continues as new to bound history.
	maxPollsPerRun = 500
)

// SettlementStatus is the state of a tracked payment request.
type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
	SettlementExpired SettlementStatus = "expired"
	SettlementFailed  SettlementStatus = "failed"
)

// SettleRequestInput describes a payment request to watch. The requester is
// the wallet that asked to be paid; the request is settled by any successful
// transaction that pays the requester at least Lamports and carries RequestID
// as its memo, which is what the Solana Pay link asks wallets to send.
type SettleRequestInput struct {
	RequestID    string        `json:"request_id"`
	Requester    string        `json:"requester"`
	Target       string        `json:"target"`
	Lamports     uint64        `json:"lamports"`
	PollInterval time.Duration `json:"poll_interval"`
	Timeout      time.Duration `json:"timeout"`

	// Carried across continue-as-new.
	Deadline time.Time `json:"deadline,omitempty"`
	Polls    int       `json:"polls,omitempty"`
}

// SettleRequestResult is both the query result and the workflow result.
type SettleRequestResult struct {
	RequestID string           `json:"request_id"`
	Status    SettlementStatus `json:"status"`
	Signature string           `json:"signature,omitempty"`
	Payer     string           `json:"payer,omitempty"`
	Lamports  uint64           `json:"lamports,omitempty"`
	SettledAt *time.Time       `json:"settled_at,omitempty"`
	Deadline  time.Time        `json:"deadline"`
	Polls     int              `json:"polls"`
	Error     string           `json:"error,omitempty"`
}

// SettleRequestWorkflow polls the requester's recent transactions until the
// request is paid or the deadline passes. Expiry is a normal completion, not
// a workflow error; so is a lookup that fails non-retryably, which ends the
// request as failed.
func SettleRequestWorkflow(ctx workflow.Context, input SettleRequestInput) (*SettleRequestResult, error) {
	logger := workflow.GetLogger(ctx)

	if input.PollInterval <= 0 {
		input.PollInterval = defaultSettlementPoll
	}
	if input.Deadline.IsZero() {
		timeout := input.Timeout
		if timeout <= 0 {
			timeout = defaultSettlementTimeout
		}
		input.Deadline = workflow.Now(ctx).Add(timeout)
	}

	result := &SettleRequestResult{
		RequestID: input.RequestID,
		Status:    SettlementPending,
		Deadline:  input.Deadline,
		Polls:     input.Polls,
	}
	if err := workflow.SetQueryHandler(ctx, SettlementQuery, func() (*SettleRequestResult, error) {
		return result, nil
	}); err != nil {
		return nil, err
	}

	logger.Info("SettleRequestWorkflow started",
		"request_id", input.RequestID,
		"requester", input.Requester,
		"lamports", input.Lamports,
		"deadline", input.Deadline,
	)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var a *Activities
	for runPolls := 0; ; runPolls++ {
		if runPolls >= maxPollsPerRun {
			logger.Info("continuing settlement as new", "request_id", input.RequestID, "polls", input.Polls)
			return result, workflow.NewContinueAsNewError(ctx, SettleRequestWorkflow, input)
		}

		var found FindSettlementResult
		err := workflow.ExecuteActivity(ctx, a.FindSettlement, FindSettlementInput{
			RequestID: input.RequestID,
			Requester: input.Requester,
			Lamports:  input.Lamports,
			Limit:     defaultSettlementLookup,
		}).Get(ctx, &found)
		input.Polls++
		result.Polls = input.Polls

		switch {
		case isNonRetryable(err):
			result.Status = SettlementFailed
			result.Error = err.Error()
			logger.Error("settlement lookup cannot succeed", "request_id", input.RequestID, "error", err)
			return result, nil
		case err != nil:
			// Ledger trouble outlasted the activity retries; try again next tick.
			logger.Warn("settlement lookup failed", "request_id", input.RequestID, "error", err)
		case found.Found:
			settledAt := found.BlockTime
			if settledAt.IsZero() {
				settledAt = workflow.Now(ctx)
			}
			result.Status = SettlementSettled
			result.Signature = found.Signature
			result.Payer = found.Payer
			result.Lamports = found.Lamports
			result.SettledAt = &settledAt

			err := workflow.ExecuteActivity(ctx, a.RecordSettlement, RecordSettlementInput{
				RequestID: input.RequestID,
				Requester: input.Requester,
				Payer:     found.Payer,
				Signature: found.Signature,
				Lamports:  found.Lamports,
				SettledAt: settledAt,
			}).Get(ctx, nil)
			if err != nil {
				logger.Warn("failed to record settlement", "request_id", input.RequestID, "error", err)
			}

			logger.Info("payment request settled",
				"request_id", input.RequestID,
				"signature", found.Signature,
			)
			return result, nil
		}

		if !workflow.Now(ctx).Before(input.Deadline) {
			result.Status = SettlementExpired
			_ = workflow.ExecuteActivity(ctx, a.RecordExpiry, input.RequestID).Get(ctx, nil)
			logger.Info("payment request expired", "request_id", input.RequestID, "polls", input.Polls)
			return result, nil
		}

		if err := workflow.Sleep(ctx, input.PollInterval); err != nil {
			return result, err
		}
	}
}

// isNonRetryable reports whether an activity failed with an error that no
// later poll can fix, such as a malformed requester address.
func isNonRetryable(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.NonRetryable()
}
