/*

This file contains the read-only views over the ledger. All views return
copies; callers never hold references into live ledger state.

*/

package ledger

import (
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"

	"github.com/enclave-network/nodepool/internal/types"
)

// Pool returns a copy of the pool record.
func (l *Ledger) Pool(poolID types.PoolID) (types.Pool, error) {
	var out types.Pool
	err := l.withPool(poolID, func(ps *poolState) error {
		out = copyPool(ps.pool)
		return nil
	})
	return out, err
}

// Pools returns copies of every pool, ordered by id.
func (l *Ledger) Pools() []types.Pool {
	l.mu.RLock()
	states := make([]*poolState, 0, len(l.pools))
	for _, ps := range l.pools {
		states = append(states, ps)
	}
	l.mu.RUnlock()

	out := make([]types.Pool, 0, len(states))
	for _, ps := range states {
		ps.mu.Lock()
		out = append(out, copyPool(ps.pool))
		ps.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Position returns a copy of one holder's position.
func (l *Ledger) Position(poolID types.PoolID, holder types.HolderID) (types.HolderPosition, error) {
	var out types.HolderPosition
	err := l.withPool(poolID, func(ps *poolState) error {
		pos, ok := ps.positions[holder]
		if !ok {
			return fmt.Errorf("%w: holder %s has no position in pool %d", types.ErrNotFound, holder, poolID)
		}
		out = copyPosition(*pos)
		return nil
	})
	return out, err
}

// Shares returns the holder's share count, zero when no position exists.
func (l *Ledger) Shares(poolID types.PoolID, holder types.HolderID) (uint64, error) {
	var shares uint64
	err := l.withPool(poolID, func(ps *poolState) error {
		if pos, ok := ps.positions[holder]; ok {
			shares = pos.Shares
		}
		return nil
	})
	return shares, err
}

// Holders returns copies of every position in the pool, ordered by holder id.
func (l *Ledger) Holders(poolID types.PoolID) ([]types.HolderPosition, error) {
	var out []types.HolderPosition
	err := l.withPool(poolID, func(ps *poolState) error {
		out = make([]types.HolderPosition, 0, len(ps.positions))
		for _, pos := range ps.positions {
			out = append(out, copyPosition(*pos))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder < out[j].Holder })
	return out, nil
}

// Snapshot condenses a pool's ledger state for the journal. activeOrders is
// supplied by the marketplace, which owns the order indices.
func (l *Ledger) Snapshot(poolID types.PoolID, activeOrders int) (types.PoolSnapshot, error) {
	var out types.PoolSnapshot
	err := l.withPool(poolID, func(ps *poolState) error {
		out = types.PoolSnapshot{
			PoolID:               ps.pool.ID,
			KindName:             ps.pool.Kind.Name,
			State:                ps.pool.State.String(),
			TotalShares:          ps.pool.TotalShares,
			TotalWeightedShares:  ps.pool.TotalWeightedShares,
			HolderCount:          len(ps.positions),
			AccProducedPerWeight: ps.pool.AccProducedPerWeight.String(),
			RemainingMintQuota:   ps.pool.RemainingMintQuota.String(),
			UnlockedNotWithdrawn: ps.pool.UnlockedNotWithdrawn.String(),
			ActiveOrderCount:     activeOrders,
			Timestamp:            l.clock.Now(),
		}
		return nil
	})
	return out, err
}

// CheckInvariants rescans one pool and verifies share conservation and the
// weighted-share total. The ledger maintains both incrementally; this full
// rescan exists for tests and operational audits.
func (l *Ledger) CheckInvariants(poolID types.PoolID) error {
	return l.withPool(poolID, func(ps *poolState) error {
		var shares, weighted uint64
		for _, pos := range ps.positions {
			shares += pos.Shares
			weighted += pos.WeightedShares(ps.pool.Kind)
		}
		if shares != ps.pool.TotalShares {
			return fmt.Errorf("share conservation violated in pool %d: positions sum to %d, pool records %d",
				poolID, shares, ps.pool.TotalShares)
		}
		if weighted != ps.pool.TotalWeightedShares {
			return fmt.Errorf("weighted share total violated in pool %d: positions sum to %d, pool records %d",
				poolID, weighted, ps.pool.TotalWeightedShares)
		}
		return nil
	})
}

func copyPool(p types.Pool) types.Pool {
	out := p
	out.AccRewardPerWeight = make(map[string]sdkmath.Int, len(p.AccRewardPerWeight))
	for token, acc := range p.AccRewardPerWeight {
		out.AccRewardPerWeight[token] = acc
	}
	return out
}

func copyPosition(p types.HolderPosition) types.HolderPosition {
	out := p
	out.RewardDebt = make(map[string]sdkmath.Int, len(p.RewardDebt))
	for token, debt := range p.RewardDebt {
		out.RewardDebt[token] = debt
	}
	return out
}
