package ledger

import (
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enclave-network/nodepool/internal/config"
	"github.com/enclave-network/nodepool/internal/events"
	"github.com/enclave-network/nodepool/internal/types"
)

func TestDistributeAndClaimProduced(t *testing.T) {
	env := newTestEnv(t)
	alice := types.HolderID("alice")
	bob := types.HolderID("bob")
	id := env.newStandardPool(t, alice)
	require.NoError(t, env.ledger.TransferShares(id, alice, bob, 3))

	require.NoError(t, env.ledger.DistributeProduced(id, sdkmath.NewInt(1000)))

	t.Run("PendingIsProportionalToShares", func(t *testing.T) {
		alicePending, err := env.ledger.PendingProduced(id, alice)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(700), alicePending)

		bobPending, err := env.ledger.PendingProduced(id, bob)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(300), bobPending)
	})

	t.Run("ClaimPaysOutThroughBank", func(t *testing.T) {
		paid, err := env.ledger.ClaimProduced(id, alice)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(700), paid)
		assert.Equal(t, sdkmath.NewInt(700), env.bank.Balance(alice, producedDenom))
	})

	t.Run("SecondClaimIsZero", func(t *testing.T) {
		paid, err := env.ledger.ClaimProduced(id, alice)
		require.NoError(t, err)
		assert.True(t, paid.IsZero(), "no new distribution, nothing to claim")
		assert.Equal(t, sdkmath.NewInt(700), env.bank.Balance(alice, producedDenom))
	})

	t.Run("OnlyNewDistributionsAccrueAfterClaim", func(t *testing.T) {
		require.NoError(t, env.ledger.DistributeProduced(id, sdkmath.NewInt(100)))

		alicePending, err := env.ledger.PendingProduced(id, alice)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(70), alicePending)

		// Bob never claimed: both distributions are still pending.
		bobPending, err := env.ledger.PendingProduced(id, bob)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(330), bobPending)
	})
}

func TestWeightedSharesEarnProportionallyMore(t *testing.T) {
	env := newTestEnv(t)
	alice := types.HolderID("alice")

	// Same distribution into a Standard (weight 1) and a Premium (weight 6)
	// pool. Per-pool accounting means each holder simply gets the whole
	// amount, but the weighted totals differ by the weight factor.
	standard := env.newStandardPool(t, alice)
	premium, err := env.ledger.CreatePool(config.KindPremium)
	require.NoError(t, err)
	require.NoError(t, env.ledger.MintInitialShares(premium, alice))

	stdPool, err := env.ledger.Pool(standard)
	require.NoError(t, err)
	premPool, err := env.ledger.Pool(premium)
	require.NoError(t, err)
	assert.Equal(t, stdPool.TotalWeightedShares*6, premPool.TotalWeightedShares)

	require.NoError(t, env.ledger.DistributeProduced(standard, sdkmath.NewInt(600)))
	require.NoError(t, env.ledger.DistributeProduced(premium, sdkmath.NewInt(600)))

	stdPending, err := env.ledger.PendingProduced(standard, alice)
	require.NoError(t, err)
	premPending, err := env.ledger.PendingProduced(premium, alice)
	require.NoError(t, err)
	assert.Equal(t, stdPending, premPending, "sole holder receives the full distribution either way")
	assert.Equal(t, sdkmath.NewInt(600), stdPending)
}

func TestDistributeRejections(t *testing.T) {
	env := newTestEnv(t)
	alice := types.HolderID("alice")

	t.Run("ZeroWeightedShares", func(t *testing.T) {
		// Pool created but never minted.
		id, err := env.ledger.CreatePool(config.KindStandard)
		require.NoError(t, err)
		err = env.ledger.DistributeProduced(id, sdkmath.NewInt(100))
		assert.ErrorIs(t, err, types.ErrInvalidAmount, "funds must never be absorbed by an unclaimable accumulator")
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		id := env.newStandardPool(t, alice)
		assert.ErrorIs(t, env.ledger.DistributeProduced(id, sdkmath.ZeroInt()), types.ErrInvalidAmount)
		assert.ErrorIs(t, env.ledger.DistributeProduced(id, sdkmath.NewInt(-10)), types.ErrInvalidAmount)
	})

	t.Run("DissolvedPool", func(t *testing.T) {
		id := env.newStandardPool(t, alice)
		require.NoError(t, env.ledger.ProposeDissolve(id, alice))
		assert.ErrorIs(t, env.ledger.DistributeProduced(id, sdkmath.NewInt(100)), types.ErrInvalidState)
	})

	t.Run("RewardTokenCannotBeProducedDenom", func(t *testing.T) {
		id := env.newStandardPool(t, alice)
		assert.ErrorIs(t, env.ledger.DistributeReward(id, producedDenom, sdkmath.NewInt(100)), types.ErrInvalidAmount)
		assert.ErrorIs(t, env.ledger.DistributeReward(id, "", sdkmath.NewInt(100)), types.ErrInvalidAmount)
	})
}

func TestExternalRewardTokens(t *testing.T) {
	env := newTestEnv(t)
	alice := types.HolderID("alice")
	bob := types.HolderID("bob")
	id := env.newStandardPool(t, alice)
	require.NoError(t, env.ledger.TransferShares(id, alice, bob, 5))

	require.NoError(t, env.ledger.DistributeReward(id, "uusdc", sdkmath.NewInt(400)))
	require.NoError(t, env.ledger.DistributeReward(id, "uatom", sdkmath.NewInt(80)))

	t.Run("TokensAccrueIndependently", func(t *testing.T) {
		usdc, err := env.ledger.PendingReward(id, alice, "uusdc")
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(200), usdc)

		atom, err := env.ledger.PendingReward(id, alice, "uatom")
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(40), atom)
	})

	t.Run("ClaimOneTokenLeavesTheOther", func(t *testing.T) {
		paid, err := env.ledger.ClaimReward(id, alice, "uusdc")
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(200), paid)
		assert.Equal(t, sdkmath.NewInt(200), env.bank.Balance(alice, "uusdc"))

		atom, err := env.ledger.PendingReward(id, alice, "uatom")
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(40), atom, "claiming uusdc must not touch uatom accrual")
	})

	t.Run("UnknownTokenPendsZero", func(t *testing.T) {
		pending, err := env.ledger.PendingReward(id, alice, "ushib")
		require.NoError(t, err)
		assert.True(t, pending.IsZero())
	})

	t.Run("ClaimUnknownTokenFails", func(t *testing.T) {
		_, err := env.ledger.ClaimReward(id, alice, "ushib")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestTransferPreservesPendingRewards(t *testing.T) {
	env := newTestEnv(t)
	alice := types.HolderID("alice")
	bob := types.HolderID("bob")
	id := env.newStandardPool(t, alice)

	require.NoError(t, env.ledger.DistributeProduced(id, sdkmath.NewInt(1000)))
	require.NoError(t, env.ledger.DistributeReward(id, "uusdc", sdkmath.NewInt(500)))

	// Alice gives away her whole position after the distributions.
	require.NoError(t, env.ledger.TransferShares(id, alice, bob, 10))

	t.Run("SellerKeepsAccruedRewards", func(t *testing.T) {
		pending, err := env.ledger.PendingProduced(id, alice)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(1000), pending, "accrual up to the transfer belongs to the seller")

		usdc, err := env.ledger.PendingReward(id, alice, "uusdc")
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(500), usdc)
	})

	t.Run("BuyerStartsFromZero", func(t *testing.T) {
		pending, err := env.ledger.PendingProduced(id, bob)
		require.NoError(t, err)
		assert.True(t, pending.IsZero(), "past distributions never accrue to the buyer")
	})

	t.Run("NewDistributionAccruesToBuyerOnly", func(t *testing.T) {
		require.NoError(t, env.ledger.DistributeProduced(id, sdkmath.NewInt(300)))

		alicePending, err := env.ledger.PendingProduced(id, alice)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(1000), alicePending)

		bobPending, err := env.ledger.PendingProduced(id, bob)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(300), bobPending)
	})

	t.Run("ExitedHolderCanStillClaim", func(t *testing.T) {
		paid, err := env.ledger.ClaimProduced(id, alice)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(1000), paid)

		paid, err = env.ledger.ClaimReward(id, alice, "uusdc")
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(500), paid)

		// With everything claimed and no shares, the position is reaped.
		_, err = env.ledger.Position(id, alice)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestRewardConservation(t *testing.T) {
	env := newTestEnv(t)
	holders := []types.HolderID{"alice", "bob", "carol"}
	id := env.newStandardPool(t, holders[0])
	require.NoError(t, env.ledger.TransferShares(id, holders[0], holders[1], 3))
	require.NoError(t, env.ledger.TransferShares(id, holders[0], holders[2], 2))

	// An amount that does not divide evenly across ten shares.
	distributed := sdkmath.NewInt(997)
	require.NoError(t, env.ledger.DistributeProduced(id, distributed))

	totalPaid := sdkmath.ZeroInt()
	for _, h := range holders {
		paid, err := env.ledger.ClaimProduced(id, h)
		require.NoError(t, err)
		totalPaid = totalPaid.Add(paid)
	}

	assert.True(t, totalPaid.LTE(distributed), "claims must never exceed the distributed amount")
	// Truncation dust is at most one unit per weighted share.
	dust := distributed.Sub(totalPaid)
	assert.True(t, dust.LTE(sdkmath.NewInt(10)), "dust exceeded one unit per share: %s", dust)
}

func TestClaimProducedBatch(t *testing.T) {
	env := newTestEnv(t)
	alice := types.HolderID("alice")

	poolA := env.newStandardPool(t, alice)
	poolB := env.newStandardPool(t, alice)
	require.NoError(t, env.ledger.DistributeProduced(poolA, sdkmath.NewInt(100)))
	require.NoError(t, env.ledger.DistributeProduced(poolB, sdkmath.NewInt(250)))

	// poolC does not exist; its failure must not affect the other claims.
	results := env.ledger.ClaimProducedBatch([]types.PoolID{poolA, types.PoolID(9999), poolB}, alice)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, sdkmath.NewInt(100), results[0].Amount)

	assert.ErrorIs(t, results[1].Err, types.ErrNotFound)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, sdkmath.NewInt(250), results[2].Amount)

	assert.Equal(t, sdkmath.NewInt(350), env.bank.Balance(alice, producedDenom))
}

func TestClaimRewardBatch(t *testing.T) {
	env := newTestEnv(t)
	alice := types.HolderID("alice")

	poolA := env.newStandardPool(t, alice)
	poolB := env.newStandardPool(t, alice)
	poolC := env.newStandardPool(t, alice)
	require.NoError(t, env.ledger.DistributeReward(poolA, "uusdc", sdkmath.NewInt(100)))
	require.NoError(t, env.ledger.DistributeReward(poolB, "uusdc", sdkmath.NewInt(250)))
	// poolC never saw a uusdc distribution; its claim fails with ErrNotFound.

	results := env.ledger.ClaimRewardBatch([]types.PoolID{poolA, poolC, types.PoolID(9999), poolB}, alice, "uusdc")
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, sdkmath.NewInt(100), results[0].Amount)

	assert.ErrorIs(t, results[1].Err, types.ErrNotFound)
	assert.ErrorIs(t, results[2].Err, types.ErrNotFound)

	assert.NoError(t, results[3].Err)
	assert.Equal(t, sdkmath.NewInt(250), results[3].Amount)

	assert.Equal(t, sdkmath.NewInt(350), env.bank.Balance(alice, "uusdc"))
}

func TestConcurrentClaimsAcrossPools(t *testing.T) {
	env := newTestEnv(t)
	alice := types.HolderID("alice")

	const poolCount = 8
	ids := make([]types.PoolID, 0, poolCount)
	for i := 0; i < poolCount; i++ {
		id := env.newStandardPool(t, alice)
		require.NoError(t, env.ledger.DistributeProduced(id, sdkmath.NewInt(100)))
		ids = append(ids, id)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id types.PoolID) {
			defer wg.Done()
			if _, err := env.ledger.ClaimProduced(id, alice); err != nil {
				t.Errorf("claim on pool %d failed: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, sdkmath.NewInt(100*poolCount), env.bank.Balance(alice, producedDenom))
	assert.Len(t, env.events.OfType(events.ProducedClaimed), poolCount)
}
