package solana

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrEmptyAmount is returned when no amount was entered.
	ErrEmptyAmount = errors.New("amount is required")

	// ErrNonPositiveAmount is returned for zero or negative amounts.
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
)

// decimalAmount matches plain decimal SOL amounts: digits with an optional
// fractional part. Signs, exponents and base prefixes are rejected.
var decimalAmount = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// ParseSOL converts a human-entered SOL amount (e.g. "1.5") into lamports,
// flooring anything below one lamport. The conversion is exact: the decimal
// string is parsed as a rational, never as a float.
func ParseSOL(amount string) (uint64, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, ErrEmptyAmount
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNonPositiveAmount
	}
	if !decimalAmount.MatchString(s) {
		return 0, fmt.Errorf("invalid amount %q: must be a decimal number", amount)
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("invalid amount %q: must be a decimal number", amount)
	}
	if r.Sign() <= 0 {
		return 0, ErrNonPositiveAmount
	}

	r.Mul(r, new(big.Rat).SetUint64(solana.LAMPORTS_PER_SOL))
	lamports := new(big.Int).Quo(r.Num(), r.Denom())
	// Amounts are stored as signed 64-bit lamports.
	if !lamports.IsInt64() {
		return 0, fmt.Errorf("invalid amount %q: too large", amount)
	}
	return lamports.Uint64(), nil
}

// LamportsToSOL converts lamports to SOL for display.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
}

// FormatSOL renders lamports as a SOL amount with 4 decimals, the precision
// used on the dashboard.
func FormatSOL(lamports uint64) string {
	return fmt.Sprintf("%.4f", LamportsToSOL(lamports))
}
