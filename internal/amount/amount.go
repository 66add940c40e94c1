// Package amount implements the Amount Codec (spec §4.2): arbitrary
// precision conversion between atomic integer amounts (which may exceed 64
// bits) and fixed-point decimal strings, given a per-ticker decimals scale.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAtomic converts atomic (an arbitrary-precision integer) to a
// fixed-point decimal string with trailing zeros trimmed and no trailing
// dot. decimals = 0 yields the bare integer. Negative decimals are
// rejected — the spec's "non-finite inputs yield null" becomes a Go error.
func FormatAtomic(atomic *big.Int, decimals int) (string, error) {
	if atomic == nil {
		return "", fmt.Errorf("amount: nil atomic value")
	}
	if decimals < 0 {
		return "", fmt.Errorf("amount: negative decimals %d", decimals)
	}

	d := decimal.NewFromBigInt(atomic, int32(-decimals))
	s := d.String()

	if decimals == 0 {
		return s, nil
	}
	if !strings.Contains(s, ".") {
		return s, nil
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s, nil
}

// ParseAtomic parses a decimal or integer string into its atomic
// representation at the given decimals scale.
func ParseAtomic(s string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("amount: negative decimals %d", decimals)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount: empty amount string")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("amount: invalid decimal %q: %w", s, err)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount: %q has more fraction digits than decimals=%d allows", s, decimals)
	}
	return scaled.BigInt(), nil
}

// Normalize reformats a decimal string to its canonical trimmed form, used
// by the P6 round-trip property test.
func Normalize(s string, decimals int) (string, error) {
	atomic, err := ParseAtomic(s, decimals)
	if err != nil {
		return "", err
	}
	return FormatAtomic(atomic, decimals)
}
