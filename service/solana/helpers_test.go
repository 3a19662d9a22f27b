package solana

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

// newKey returns a fresh random keypair.
func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

// buildResult signs a transaction made of instructions and wraps it the way
// getTransaction returns it with base64 encoding.
func buildResult(t *testing.T, payer solana.PrivateKey, blockTime time.Time, instructions ...solana.Instruction) *rpc.GetTransactionResult {
	t.Helper()

	tx, err := solana.NewTransaction(
		instructions,
		solana.Hash(solana.NewWallet().PublicKey()),
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	require.NoError(t, err)

	b64, err := tx.ToBase64()
	require.NoError(t, err)

	raw, err := json.Marshal(map[string]interface{}{
		"slot":        100,
		"blockTime":   blockTime.Unix(),
		"transaction": []string{b64, "base64"},
		"meta":        map[string]interface{}{"err": nil, "fee": 5000},
	})
	require.NoError(t, err)

	var result rpc.GetTransactionResult
	require.NoError(t, json.Unmarshal(raw, &result))
	return &result
}

// transfer builds a System Program transfer instruction.
func transfer(lamports uint64, from, to solana.PublicKey) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}
