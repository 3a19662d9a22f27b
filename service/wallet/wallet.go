// Package wallet provides the identity that signs payment transactions.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
)

// ErrNotConnected is returned when no wallet identity is available.
var ErrNotConnected = errors.New("wallet not connected")

// Connector is the wallet surface the payment flows depend on.
type Connector interface {
	// Identity returns the connected public key. ok is false when no
	// wallet is connected.
	Identity() (pk solana.PublicKey, ok bool)

	// SignAndSend signs tx with the connected identity and broadcasts it.
	SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Sender broadcasts signed transactions. *solana.Client from service/solana
// satisfies it.
type Sender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// KeypairConnector signs with a local ed25519 keypair.
type KeypairConnector struct {
	key    solana.PrivateKey
	sender Sender
	logger *slog.Logger
}

// NewKeypairConnector wraps an in-memory private key.
func NewKeypairConnector(key solana.PrivateKey, sender Sender, logger *slog.Logger) *KeypairConnector {
	return &KeypairConnector{key: key, sender: sender, logger: logger}
}

// LoadKeypair reads a solana-keygen JSON file.
func LoadKeypair(path string, sender Sender, logger *slog.Logger) (*KeypairConnector, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return NewKeypairConnector(key, sender, logger), nil
}

// Identity returns the keypair's public key.
func (k *KeypairConnector) Identity() (solana.PublicKey, bool) {
	return k.key.PublicKey(), true
}

// SignAndSend signs every signer slot owned by this keypair and sends tx.
func (k *KeypairConnector) SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	pub := k.key.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &k.key
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := k.sender.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}

	k.logger.DebugContext(ctx, "transaction signed and sent",
		"signer", pub.String(),
		"signature", sig.String(),
	)
	return sig, nil
}

// Disconnected is a Connector with no identity. Every send fails.
type Disconnected struct{}

// Identity always reports no connected wallet.
func (Disconnected) Identity() (solana.PublicKey, bool) {
	return solana.PublicKey{}, false
}

// SignAndSend always returns ErrNotConnected.
func (Disconnected) SignAndSend(context.Context, *solana.Transaction) (solana.Signature, error) {
	return solana.Signature{}, ErrNotConnected
}
