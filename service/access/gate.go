// Package access decides which navigation a wallet identity sees.
package access

import (
	solanago "github.com/gagliardetto/solana-go"
)

// Gate compares wallet identities to the configured admin address. It only
// controls navigation; the dashboard data is public ledger data.
type Gate struct {
	admin string
}

// NewGate creates a gate for the given admin wallet.
func NewGate(admin solanago.PublicKey) *Gate {
	return &Gate{admin: admin.String()}
}

// ShowAdminLink reports whether identity is connected and equals the admin
// address.
func (g *Gate) ShowAdminLink(identity solanago.PublicKey, connected bool) bool {
	if !connected || identity.IsZero() {
		return false
	}
	return identity.String() == g.admin
}
