package payment

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mu           sync.Mutex
	blockhashErr error
	confirmErr   error
	blockhashes  int
	confirmed    []solanago.Signature
	commitments  []rpc.CommitmentType
}

func (m *mockLedger) LatestBlockhash(ctx context.Context) (solanago.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockhashes++
	if m.blockhashErr != nil {
		return solanago.Hash{}, m.blockhashErr
	}
	return solanago.Hash{7}, nil
}

func (m *mockLedger) AwaitConfirmation(ctx context.Context, sig solanago.Signature, commitment rpc.CommitmentType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed = append(m.confirmed, sig)
	m.commitments = append(m.commitments, commitment)
	return m.confirmErr
}

type mockConnector struct {
	key     solanago.PrivateKey
	offline bool
	sendErr error
	sent    []*solanago.Transaction
}

func newMockConnector(t *testing.T) *mockConnector {
	t.Helper()
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return &mockConnector{key: key}
}

func (m *mockConnector) Identity() (solanago.PublicKey, bool) {
	if m.offline {
		return solanago.PublicKey{}, false
	}
	return m.key.PublicKey(), true
}

func (m *mockConnector) SignAndSend(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	if m.sendErr != nil {
		return solanago.Signature{}, m.sendErr
	}
	_, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(m.key.PublicKey()) {
			return &m.key
		}
		return nil
	})
	if err != nil {
		return solanago.Signature{}, err
	}
	m.sent = append(m.sent, tx)
	return tx.Signatures[0], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// decodedIx is a compiled instruction resolved against the message keys.
type decodedIx struct {
	program  solanago.PublicKey
	accounts []solanago.PublicKey
	data     []byte
}

func decode(t *testing.T, tx *solanago.Transaction) []decodedIx {
	t.Helper()
	out := make([]decodedIx, 0, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		program, err := tx.Message.Program(ix.ProgramIDIndex)
		require.NoError(t, err)
		accounts := make([]solanago.PublicKey, len(ix.Accounts))
		for i, idx := range ix.Accounts {
			accounts[i] = tx.Message.AccountKeys[idx]
		}
		out = append(out, decodedIx{program: program, accounts: accounts, data: ix.Data})
	}
	return out
}

// transferLamports reads the amount of a System Program Transfer.
func transferLamports(t *testing.T, ix decodedIx) uint64 {
	t.Helper()
	require.Equal(t, solanago.SystemProgramID, ix.program)
	require.Len(t, ix.data, 12)
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(ix.data[:4]))
	return binary.LittleEndian.Uint64(ix.data[4:])
}
