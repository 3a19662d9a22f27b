package payment

import (
	"fmt"
	"math/big"
)

const bpsDenominator = 10_000

// Breakdown is the result of splitting a gross amount into the recipient's
// net amount and the admin commission. Net + Commission == Gross.
type Breakdown struct {
	Gross      uint64 `json:"gross_lamports"`
	Net        uint64 `json:"net_lamports"`
	Commission uint64 `json:"commission_lamports"`
}

// Split computes floor(gross * rateBps / 10000) as the commission and gives
// the remainder to the recipient.
func Split(gross, rateBps uint64) (Breakdown, error) {
	if rateBps > bpsDenominator {
		return Breakdown{}, fmt.Errorf("commission rate %d bps exceeds 100%%", rateBps)
	}

	// gross*rateBps can overflow uint64 for large amounts.
	c := new(big.Int).SetUint64(gross)
	c.Mul(c, new(big.Int).SetUint64(rateBps))
	c.Quo(c, big.NewInt(bpsDenominator))
	commission := c.Uint64()

	return Breakdown{
		Gross:      gross,
		Net:        gross - commission,
		Commission: commission,
	}, nil
}
