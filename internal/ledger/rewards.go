/*

This file contains the reward distribution engine. One accumulator tracks
the native production token and one accumulator per external reward token
tracks everything else; a distribution is O(1) regardless of holder count,
and a claim is O(1) regardless of how many distributions happened since the
holder last settled.

Distributions only move the accumulator. Custody of the distributed tokens
is the distributor's responsibility; claims pay out through the token bank.

*/

package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/enclave-network/nodepool/internal/events"
	"github.com/enclave-network/nodepool/internal/fixedpoint"
	"github.com/enclave-network/nodepool/internal/types"
)

// DistributeProduced credits amount of the production token to the pool's
// holders, proportionally to weighted shares. Fails on a dissolved pool and
// on a pool with zero weighted shares; funds must never be absorbed into an
// accumulator no one can claim.
func (l *Ledger) DistributeProduced(poolID types.PoolID, amount sdkmath.Int) error {
	err := l.withPool(poolID, func(ps *poolState) error {
		if ps.pool.State != types.PoolLive {
			return fmt.Errorf("%w: pool %d is %s", types.ErrInvalidState, poolID, ps.pool.State)
		}
		inc, err := fixedpoint.AccumulatorIncrement(amount, ps.pool.TotalWeightedShares)
		if err != nil {
			return err
		}
		ps.pool.AccProducedPerWeight = ps.pool.AccProducedPerWeight.Add(inc)
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info().
		Uint64("poolID", uint64(poolID)).
		Str("amount", amount.String()).
		Msg("Production distributed")

	ev := events.New(events.ProducedDistributed, uint64(poolID), l.clock.Now())
	ev.Token = l.producedDenom
	ev.Amount = amount.String()
	l.sink.Emit(ev)
	return nil
}

// DistributeReward credits amount of an external reward token to the pool's
// holders. The token's accumulator is lazily created on first use.
func (l *Ledger) DistributeReward(poolID types.PoolID, token string, amount sdkmath.Int) error {
	if token == "" || token == l.producedDenom {
		return fmt.Errorf("%w: reward token %q", types.ErrInvalidAmount, token)
	}
	err := l.withPool(poolID, func(ps *poolState) error {
		if ps.pool.State != types.PoolLive {
			return fmt.Errorf("%w: pool %d is %s", types.ErrInvalidState, poolID, ps.pool.State)
		}
		inc, err := fixedpoint.AccumulatorIncrement(amount, ps.pool.TotalWeightedShares)
		if err != nil {
			return err
		}
		acc, ok := ps.pool.AccRewardPerWeight[token]
		if !ok {
			acc = sdkmath.ZeroInt()
		}
		ps.pool.AccRewardPerWeight[token] = acc.Add(inc)
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info().
		Uint64("poolID", uint64(poolID)).
		Str("token", token).
		Str("amount", amount.String()).
		Msg("Reward distributed")

	ev := events.New(events.RewardDistributed, uint64(poolID), l.clock.Now())
	ev.Token = token
	ev.Amount = amount.String()
	l.sink.Emit(ev)
	return nil
}

// PendingProduced returns the holder's accrued-but-unclaimed production
// reward. View only, no side effects. Holders without a position pend zero.
func (l *Ledger) PendingProduced(poolID types.PoolID, holder types.HolderID) (sdkmath.Int, error) {
	pending := sdkmath.ZeroInt()
	err := l.withPool(poolID, func(ps *poolState) error {
		pos, ok := ps.positions[holder]
		if !ok {
			return nil
		}
		pending = pendingAmount(pos.WeightedShares(ps.pool.Kind), ps.pool.AccProducedPerWeight, pos.ProductionDebt)
		return nil
	})
	return pending, err
}

// PendingReward returns the holder's accrued-but-unclaimed amount of one
// external reward token. View only, no side effects.
func (l *Ledger) PendingReward(poolID types.PoolID, holder types.HolderID, token string) (sdkmath.Int, error) {
	pending := sdkmath.ZeroInt()
	err := l.withPool(poolID, func(ps *poolState) error {
		acc, ok := ps.pool.AccRewardPerWeight[token]
		if !ok {
			return nil
		}
		pos, ok := ps.positions[holder]
		if !ok {
			return nil
		}
		debt, ok := pos.RewardDebt[token]
		if !ok {
			debt = sdkmath.ZeroInt()
		}
		pending = pendingAmount(pos.WeightedShares(ps.pool.Kind), acc, debt)
		return nil
	})
	return pending, err
}

// ClaimProduced pays out the holder's pending production reward and marks
// the position fully caught up. A zero pending amount is a no-op, not an
// error. The bank credit happens before any state change, so a failed
// payout leaves the claim fully intact.
func (l *Ledger) ClaimProduced(poolID types.PoolID, holder types.HolderID) (sdkmath.Int, error) {
	paid := sdkmath.ZeroInt()
	err := l.withPool(poolID, func(ps *poolState) error {
		pos, ok := ps.positions[holder]
		if !ok {
			return fmt.Errorf("%w: holder %s has no position in pool %d", types.ErrNotFound, holder, poolID)
		}
		weighted := pos.WeightedShares(ps.pool.Kind)
		pending := pendingAmount(weighted, ps.pool.AccProducedPerWeight, pos.ProductionDebt)
		if !pending.IsPositive() {
			return nil
		}
		if err := l.bank.Credit(holder, l.producedDenom, pending); err != nil {
			return fmt.Errorf("production payout failed for %s: %w", holder, err)
		}
		pos.ProductionDebt = fixedpoint.WeightedDebt(weighted, ps.pool.AccProducedPerWeight)
		paid = pending
		l.reapIfEmpty(ps, holder)
		return nil
	})
	if err != nil || paid.IsZero() {
		return paid, err
	}

	l.logger.Info().
		Uint64("poolID", uint64(poolID)).
		Str("holder", string(holder)).
		Str("amount", paid.String()).
		Msg("Production claimed")

	ev := events.New(events.ProducedClaimed, uint64(poolID), l.clock.Now())
	ev.Holder = string(holder)
	ev.Token = l.producedDenom
	ev.Amount = paid.String()
	l.sink.Emit(ev)
	return paid, nil
}

// ClaimReward pays out the holder's pending amount of one external reward
// token, symmetric to ClaimProduced.
func (l *Ledger) ClaimReward(poolID types.PoolID, holder types.HolderID, token string) (sdkmath.Int, error) {
	paid := sdkmath.ZeroInt()
	err := l.withPool(poolID, func(ps *poolState) error {
		acc, ok := ps.pool.AccRewardPerWeight[token]
		if !ok {
			return fmt.Errorf("%w: reward token %q in pool %d", types.ErrNotFound, token, poolID)
		}
		pos, ok := ps.positions[holder]
		if !ok {
			return fmt.Errorf("%w: holder %s has no position in pool %d", types.ErrNotFound, holder, poolID)
		}
		weighted := pos.WeightedShares(ps.pool.Kind)
		debt, ok := pos.RewardDebt[token]
		if !ok {
			debt = sdkmath.ZeroInt()
		}
		pending := pendingAmount(weighted, acc, debt)
		if !pending.IsPositive() {
			return nil
		}
		if err := l.bank.Credit(holder, token, pending); err != nil {
			return fmt.Errorf("reward payout failed for %s: %w", holder, err)
		}
		pos.RewardDebt[token] = fixedpoint.WeightedDebt(weighted, acc)
		paid = pending
		l.reapIfEmpty(ps, holder)
		return nil
	})
	if err != nil || paid.IsZero() {
		return paid, err
	}

	l.logger.Info().
		Uint64("poolID", uint64(poolID)).
		Str("holder", string(holder)).
		Str("token", token).
		Str("amount", paid.String()).
		Msg("Reward claimed")

	ev := events.New(events.RewardClaimed, uint64(poolID), l.clock.Now())
	ev.Holder = string(holder)
	ev.Token = token
	ev.Amount = paid.String()
	l.sink.Emit(ev)
	return paid, nil
}

// ClaimResult is the outcome of one pool within a batch claim.
type ClaimResult struct {
	PoolID types.PoolID `json:"pool_id"`
	Amount sdkmath.Int  `json:"amount"`
	Err    error        `json:"-"`
}

// ClaimProducedBatch claims the production reward across several pools.
// Each pool is settled independently: one pool's failure is recorded in its
// result and does not abort the others.
func (l *Ledger) ClaimProducedBatch(poolIDs []types.PoolID, holder types.HolderID) []ClaimResult {
	results := make([]ClaimResult, 0, len(poolIDs))
	for _, id := range poolIDs {
		paid, err := l.ClaimProduced(id, holder)
		results = append(results, ClaimResult{PoolID: id, Amount: paid, Err: err})
	}
	return results
}

// ClaimRewardBatch claims one external reward token across several pools,
// with the same per-pool fault isolation as ClaimProducedBatch.
func (l *Ledger) ClaimRewardBatch(poolIDs []types.PoolID, holder types.HolderID, token string) []ClaimResult {
	results := make([]ClaimResult, 0, len(poolIDs))
	for _, id := range poolIDs {
		paid, err := l.ClaimReward(id, holder, token)
		results = append(results, ClaimResult{PoolID: id, Amount: paid, Err: err})
	}
	return results
}
