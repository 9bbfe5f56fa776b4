/*

This file contains the fixed-point arithmetic primitives used by the reward
accounting. All accumulator values are scaled by Precision so that
per-distribution increments survive integer division by the pool's total
weighted shares without rounding to zero.

*/

package fixedpoint

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/enclave-network/nodepool/internal/types"
)

// PrecisionDecimals is the number of decimal places carried by scaled values.
const PrecisionDecimals = 18

// Precision is the scale factor applied to accumulator values.
var Precision = sdkmath.NewIntWithDecimal(1, PrecisionDecimals)

// ScaleUp converts a token amount into scaled accumulator units.
func ScaleUp(amount sdkmath.Int) sdkmath.Int {
	return amount.Mul(Precision)
}

// ScaleDown truncates a scaled value back into token units.
func ScaleDown(scaled sdkmath.Int) sdkmath.Int {
	return scaled.Quo(Precision)
}

// MulDiv computes a*b/denom without intermediate overflow. sdkmath.Int is
// arbitrary precision, so the product is exact and only the final division
// truncates.
func MulDiv(a, b, denom sdkmath.Int) (sdkmath.Int, error) {
	if denom.IsNil() || !denom.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: mulDiv denominator must be positive", types.ErrInvalidAmount)
	}
	return a.Mul(b).Quo(denom), nil
}

// AccumulatorIncrement returns the per-weight accumulator delta for
// distributing amount across totalWeightedShares. Distributions against zero
// weighted shares are rejected so funds can never be absorbed into an
// accumulator no one can claim.
func AccumulatorIncrement(amount sdkmath.Int, totalWeightedShares uint64) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: distribution amount must be positive", types.ErrInvalidAmount)
	}
	if totalWeightedShares == 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: distribution against zero weighted shares", types.ErrInvalidAmount)
	}
	return ScaleUp(amount).Quo(sdkmath.NewIntFromUint64(totalWeightedShares)), nil
}

// WeightedDebt returns the token-unit debt for weightedShares against the
// given accumulator value: weightedShares * acc / Precision.
func WeightedDebt(weightedShares uint64, acc sdkmath.Int) sdkmath.Int {
	return sdkmath.NewIntFromUint64(weightedShares).Mul(acc).Quo(Precision)
}
