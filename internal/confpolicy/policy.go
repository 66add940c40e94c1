// Package confpolicy implements the dynamic confirmation-count policy
// (spec §4.5): a pure step function over atomic amount and decimals.
package confpolicy

import "math/big"

// DynamicMinConf returns 1, 3, or 6 depending on how atomic compares to
// 50 and 100 units (scaled by 10^decimals). It is a pure function with
// exactly two breakpoints, satisfying property P7.
func DynamicMinConf(atomic *big.Int, decimals int) int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	fifty := new(big.Int).Mul(big.NewInt(50), scale)
	hundred := new(big.Int).Mul(big.NewInt(100), scale)

	switch {
	case atomic.Cmp(fifty) < 0:
		return 1
	case atomic.Cmp(hundred) < 0:
		return 3
	default:
		return 6
	}
}
