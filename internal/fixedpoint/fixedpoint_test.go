package fixedpoint

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enclave-network/nodepool/internal/types"
)

func TestScaleRoundTrip(t *testing.T) {
	amount := sdkmath.NewInt(12345)

	scaled := ScaleUp(amount)
	assert.Equal(t, amount.Mul(Precision), scaled)
	assert.Equal(t, amount, ScaleDown(scaled), "scale up then down should be lossless")
}

func TestMulDiv(t *testing.T) {
	t.Run("ExactDivision", func(t *testing.T) {
		got, err := MulDiv(sdkmath.NewInt(6), sdkmath.NewInt(7), sdkmath.NewInt(3))
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(14), got)
	})

	t.Run("TruncatesTowardZero", func(t *testing.T) {
		got, err := MulDiv(sdkmath.NewInt(10), sdkmath.NewInt(10), sdkmath.NewInt(3))
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(33), got)
	})

	t.Run("NoIntermediateOverflow", func(t *testing.T) {
		// Both factors above the uint64 range; the product only works with
		// arbitrary precision arithmetic.
		big := sdkmath.NewIntWithDecimal(2, 30)
		got, err := MulDiv(big, big, big)
		require.NoError(t, err)
		assert.Equal(t, big, got)
	})

	t.Run("RejectsNonPositiveDenominator", func(t *testing.T) {
		_, err := MulDiv(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
		assert.ErrorIs(t, err, types.ErrInvalidAmount)
	})
}

func TestAccumulatorIncrement(t *testing.T) {
	t.Run("SmallAmountSurvivesLargeShareTotal", func(t *testing.T) {
		// 1 token unit across 1000 weighted shares would truncate to zero
		// without the precision scaling.
		inc, err := AccumulatorIncrement(sdkmath.NewInt(1), 1000)
		require.NoError(t, err)
		assert.True(t, inc.IsPositive(), "increment must not round to zero")
		assert.Equal(t, Precision.QuoRaw(1000), inc)
	})

	t.Run("RejectsZeroWeightedShares", func(t *testing.T) {
		_, err := AccumulatorIncrement(sdkmath.NewInt(100), 0)
		assert.ErrorIs(t, err, types.ErrInvalidAmount)
	})

	t.Run("RejectsNonPositiveAmount", func(t *testing.T) {
		_, err := AccumulatorIncrement(sdkmath.ZeroInt(), 10)
		assert.ErrorIs(t, err, types.ErrInvalidAmount)

		_, err = AccumulatorIncrement(sdkmath.NewInt(-5), 10)
		assert.ErrorIs(t, err, types.ErrInvalidAmount)
	})
}

func TestWeightedDebt(t *testing.T) {
	// acc of 10 tokens per weight, in scaled units
	acc := ScaleUp(sdkmath.NewInt(10))

	assert.Equal(t, sdkmath.NewInt(70), WeightedDebt(7, acc))
	assert.Equal(t, sdkmath.ZeroInt(), WeightedDebt(0, acc))
}

func TestDistributionDustNeverExceedsPayout(t *testing.T) {
	// 10 tokens across 3 weighted shares: each share can claim 3, leaving
	// 1 unit of dust in the accumulator rather than overpaying.
	inc, err := AccumulatorIncrement(sdkmath.NewInt(10), 3)
	require.NoError(t, err)

	perShare := WeightedDebt(1, inc)
	assert.Equal(t, sdkmath.NewInt(3), perShare)

	total := WeightedDebt(3, inc)
	assert.True(t, total.LTE(sdkmath.NewInt(10)), "claimable total must never exceed the distributed amount")
}
