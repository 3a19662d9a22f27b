package payment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		gross      uint64
		bps        uint64
		net        uint64
		commission uint64
	}{
		{"100 SOL at 5%", 100_000_000_000, 500, 95_000_000_000, 5_000_000_000},
		{"1 lamport rounds commission down", 1, 500, 1, 0},
		{"19 lamports", 19, 500, 19, 0},
		{"20 lamports", 20, 500, 19, 1},
		{"0.123456789 SOL", 123_456_789, 500, 117_283_950, 6_172_839},
		{"zero rate", 1_000, 0, 1_000, 0},
		{"full rate", 1_000, 10_000, 0, 1_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Split(tt.gross, tt.bps)
			require.NoError(t, err)
			assert.Equal(t, tt.gross, b.Gross)
			assert.Equal(t, tt.net, b.Net)
			assert.Equal(t, tt.commission, b.Commission)
		})
	}
}

func TestSplit_ConservesAmount(t *testing.T) {
	for _, gross := range []uint64{1, 7, 999, 1_000_000_001, 42_424_242_424, math.MaxUint64} {
		b, err := Split(gross, 500)
		require.NoError(t, err)
		assert.Equal(t, gross, b.Net+b.Commission, "gross %d", gross)
		assert.LessOrEqual(t, b.Commission, b.Net)
	}
}

func TestSplit_LargeAmountDoesNotOverflow(t *testing.T) {
	b, err := Split(math.MaxUint64, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/20), b.Commission)
}

func TestSplit_RateAboveHundredPercent(t *testing.T) {
	_, err := Split(100, 10_001)
	assert.Error(t, err)
}

func TestStatus_CanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusIdle, StatusValidating},
		{StatusValidating, StatusSubmitting},
		{StatusValidating, StatusIdle},
		{StatusSubmitting, StatusConfirmed},
		{StatusSubmitting, StatusFailed},
		{StatusConfirmed, StatusIdle},
		{StatusFailed, StatusIdle},
	}
	for _, tr := range allowed {
		assert.True(t, tr[0].CanTransition(tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]Status{
		{StatusIdle, StatusSubmitting},
		{StatusIdle, StatusConfirmed},
		{StatusValidating, StatusConfirmed},
		{StatusSubmitting, StatusIdle},
		{StatusConfirmed, StatusFailed},
		{StatusFailed, StatusSubmitting},
	}
	for _, tr := range denied {
		assert.False(t, tr[0].CanTransition(tr[1]), "%s -> %s", tr[0], tr[1])
	}
}
