package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

const (
	testRequester = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testPayer     = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D8hPYmWXhLDT"
)

func newSettlementEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	var a *Activities
	env.RegisterActivity(a.FindSettlement)
	env.RegisterActivity(a.RecordSettlement)
	env.RegisterActivity(a.RecordExpiry)
	return env
}

func TestSettleRequestWorkflow_SettlesAfterPolling(t *testing.T) {
	env := newSettlementEnv(t)
	var a *Activities

	blockTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env.OnActivity(a.FindSettlement, mock.Anything, mock.Anything).
		Return(&FindSettlementResult{}, nil).Twice()
	env.OnActivity(a.FindSettlement, mock.Anything, mock.MatchedBy(func(in FindSettlementInput) bool {
		return in.RequestID == "req-1" && in.Requester == testRequester && in.Lamports == 2_000_000
	})).Return(&FindSettlementResult{
		Found:     true,
		Signature: "sig-settle",
		Payer:     testPayer,
		Lamports:  2_000_000,
		BlockTime: blockTime,
	}, nil).Once()

	var recorded RecordSettlementInput
	env.OnActivity(a.RecordSettlement, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			recorded = args.Get(1).(RecordSettlementInput)
		}).Return(nil).Once()

	env.ExecuteWorkflow(SettleRequestWorkflow, SettleRequestInput{
		RequestID:    "req-1",
		Requester:    testRequester,
		Lamports:     2_000_000,
		PollInterval: 10 * time.Second,
		Timeout:      time.Hour,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SettleRequestResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, SettlementSettled, result.Status)
	assert.Equal(t, "sig-settle", result.Signature)
	assert.Equal(t, testPayer, result.Payer)
	assert.Equal(t, 3, result.Polls)
	require.NotNil(t, result.SettledAt)
	assert.True(t, blockTime.Equal(*result.SettledAt))

	assert.Equal(t, "req-1", recorded.RequestID)
	assert.Equal(t, testRequester, recorded.Requester)
	assert.Equal(t, "sig-settle", recorded.Signature)

	val, err := env.QueryWorkflow(SettlementQuery)
	require.NoError(t, err)
	var queried SettleRequestResult
	require.NoError(t, val.Get(&queried))
	assert.Equal(t, SettlementSettled, queried.Status)

	env.AssertExpectations(t)
}

func TestSettleRequestWorkflow_Expires(t *testing.T) {
	env := newSettlementEnv(t)
	var a *Activities

	env.OnActivity(a.FindSettlement, mock.Anything, mock.Anything).
		Return(&FindSettlementResult{}, nil)
	env.OnActivity(a.RecordExpiry, mock.Anything, "req-2").Return(nil).Once()

	env.ExecuteWorkflow(SettleRequestWorkflow, SettleRequestInput{
		RequestID:    "req-2",
		Requester:    testRequester,
		Lamports:     1_000_000,
		PollInterval: 30 * time.Second,
		Timeout:      time.Minute,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SettleRequestResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, SettlementExpired, result.Status)
	assert.Empty(t, result.Signature)
	assert.Nil(t, result.SettledAt)
	// polls at 0s, 30s and 60s
	assert.Equal(t, 3, result.Polls)

	env.AssertExpectations(t)
}

func TestSettleRequestWorkflow_LookupErrorKeepsPolling(t *testing.T) {
	env := newSettlementEnv(t)
	var a *Activities

	// Fails every attempt of the first poll.
	env.OnActivity(a.FindSettlement, mock.Anything, mock.Anything).
		Return(nil, errors.New("rpc down")).Times(3)
	env.OnActivity(a.FindSettlement, mock.Anything, mock.Anything).
		Return(&FindSettlementResult{Found: true, Signature: "sig-late", Payer: testPayer, Lamports: 5}, nil).Once()
	env.OnActivity(a.RecordSettlement, mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(SettleRequestWorkflow, SettleRequestInput{
		RequestID:    "req-3",
		Requester:    testRequester,
		Lamports:     5,
		PollInterval: time.Second,
		Timeout:      time.Hour,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SettleRequestResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, SettlementSettled, result.Status)
	assert.Equal(t, "sig-late", result.Signature)
	assert.Equal(t, 2, result.Polls)
	// no block time on the record, so the workflow clock is used
	assert.NotNil(t, result.SettledAt)
}

func TestSettleRequestWorkflow_InvalidRequesterFailsFast(t *testing.T) {
	env := newSettlementEnv(t)
	var a *Activities

	env.OnActivity(a.FindSettlement, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError(
			"invalid requester address \"nope\"", "InvalidAddress", nil)).Once()

	env.ExecuteWorkflow(SettleRequestWorkflow, SettleRequestInput{
		RequestID:    "req-5",
		Requester:    "nope",
		Lamports:     1,
		PollInterval: time.Minute,
		Timeout:      24 * time.Hour,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SettleRequestResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, SettlementFailed, result.Status)
	assert.Equal(t, 1, result.Polls)
	assert.Contains(t, result.Error, "invalid requester address")

	env.AssertExpectations(t)
}

func TestSettleRequestWorkflow_RecordFailureStillSettles(t *testing.T) {
	env := newSettlementEnv(t)
	var a *Activities

	env.OnActivity(a.FindSettlement, mock.Anything, mock.Anything).
		Return(&FindSettlementResult{Found: true, Signature: "sig-x", Lamports: 1}, nil).Once()
	env.OnActivity(a.RecordSettlement, mock.Anything, mock.Anything).
		Return(temporal.NewNonRetryableApplicationError("nats down", "NATS", nil))

	env.ExecuteWorkflow(SettleRequestWorkflow, SettleRequestInput{
		RequestID: "req-4",
		Requester: testRequester,
		Lamports:  1,
	})

	require.NoError(t, env.GetWorkflowError())
	var result SettleRequestResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, SettlementSettled, result.Status)
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "settle-request-abc", WorkflowID("abc"))
}
