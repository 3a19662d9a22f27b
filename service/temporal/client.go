package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solpay/service/payment"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
)

// ErrUnknownRequest is returned when no settlement workflow exists for a
// request ID.
var ErrUnknownRequest = errors.New("unknown payment request")

// Client starts and queries settlement workflows.
type Client struct {
	client       client.Client
	taskQueue    string
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return newClient(c, taskQueue, logger), nil
}

func newClient(c client.Client, taskQueue string, logger *slog.Logger) *Client {
	return &Client{
		client:       c,
		taskQueue:    taskQueue,
		pollInterval: defaultSettlementPoll,
		timeout:      defaultSettlementTimeout,
		logger:       logger,
	}
}

// WithSettlement overrides how often a request is checked and how long it
// stays open. Non-positive values keep the defaults.
func (c *Client) WithSettlement(pollInterval, timeout time.Duration) *Client {
	if pollInterval > 0 {
		c.pollInterval = pollInterval
	}
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

const workflowIDPrefix = "settle-request-"

// WorkflowID returns the settlement workflow ID for a request.
func WorkflowID(requestID string) string {
	return workflowIDPrefix + requestID
}

// TrackRequest starts watching a confirmed payment request for settlement.
func (c *Client) TrackRequest(ctx context.Context, r payment.Receipt) error {
	if r.Kind != payment.KindRequest || r.RequestID == "" {
		return fmt.Errorf("receipt %q is not a payment request", r.Signature)
	}

	id := WorkflowID(r.RequestID)
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
		// The workflow owns its own deadline; this bounds runaway runs.
		WorkflowExecutionTimeout: c.timeout + time.Hour,
		Memo: map[string]interface{}{
			"requester":  r.Payer,
			"target":     r.Recipient,
			"signature":  r.Signature,
			"created_by": "solpay",
		},
	}, SettleRequestWorkflow, SettleRequestInput{
		RequestID:    r.RequestID,
		Requester:    r.Payer,
		Target:       r.Recipient,
		Lamports:     r.GrossLamports,
		PollInterval: c.pollInterval,
		Timeout:      c.timeout,
	})
	if err != nil {
		c.logger.Error("failed to start settlement workflow",
			"request_id", r.RequestID,
			"workflow_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to start settlement workflow %q: %w", id, err)
	}

	c.logger.Info("tracking payment request",
		"request_id", r.RequestID,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return nil
}

// Settlement returns the current settlement state of a request.
func (c *Client) Settlement(ctx context.Context, requestID string) (*SettleRequestResult, error) {
	val, err := c.client.QueryWorkflow(ctx, WorkflowID(requestID), "", SettlementQuery)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrUnknownRequest
		}
		return nil, fmt.Errorf("failed to query settlement for %q: %w", requestID, err)
	}

	var result SettleRequestResult
	if err := val.Get(&result); err != nil {
		return nil, fmt.Errorf("failed to decode settlement for %q: %w", requestID, err)
	}
	return &result, nil
}

// CancelTracking stops watching a request. The request stays valid on chain;
// only the settlement workflow is cancelled.
func (c *Client) CancelTracking(ctx context.Context, requestID string) error {
	err := c.client.CancelWorkflow(ctx, WorkflowID(requestID), "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return ErrUnknownRequest
		}
		return fmt.Errorf("failed to cancel settlement for %q: %w", requestID, err)
	}
	c.logger.Info("cancelled settlement tracking", "request_id", requestID)
	return nil
}

// TrackedRequest is a settlement workflow as listed by the server.
type TrackedRequest struct {
	RequestID string    `json:"request_id"`
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ListTracked returns up to limit settlement workflows, newest first.
func (c *Client) ListTracked(ctx context.Context, limit int) ([]TrackedRequest, error) {
	resp, err := c.client.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
		PageSize: int32(limit),
		Query:    "WorkflowType = 'SettleRequestWorkflow'",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement workflows: %w", err)
	}

	out := make([]TrackedRequest, 0, len(resp.GetExecutions()))
	for _, info := range resp.GetExecutions() {
		exec := info.GetExecution()
		out = append(out, TrackedRequest{
			RequestID: strings.TrimPrefix(exec.GetWorkflowId(), workflowIDPrefix),
			RunID:     exec.GetRunId(),
			Status:    info.GetStatus().String(),
			StartedAt: info.GetStartTime().AsTime(),
		})
	}
	return out, nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
