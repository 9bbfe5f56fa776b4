/*

This file contains the core pool ledger types: pool kinds, pools and
per-holder share positions. A pool is a fractionally owned unit with a
fixed share supply, a fixed production quota and a reward weight.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PoolID is the unique identifier of a pool, assigned at creation and never reused.
type PoolID uint64

// HolderID identifies an account holding shares. The core treats it as an
// opaque authenticated identity supplied by the caller.
type HolderID string

// PoolState is the lifecycle state of a pool.
type PoolState int

const (
	// PoolLive is the initial state: rewards accrue, principal withdrawal is forbidden.
	PoolLive PoolState = iota
	// PoolDissolved is terminal: reward distribution stops and unlocked quota
	// becomes withdrawable.
	PoolDissolved
)

// String returns a human readable state name.
func (s PoolState) String() string {
	switch s {
	case PoolLive:
		return "Live"
	case PoolDissolved:
		return "Dissolved"
	default:
		return "Unknown"
	}
}

// PoolKind is an immutable pool template. Every pool of a kind carries the
// same quota, share supply and reward weight.
type PoolKind struct {
	Name        string      `json:"name"`
	Quota       sdkmath.Int `json:"quota"`        // total production quota released over the unlock schedule
	ShareCount  uint64      `json:"share_count"`  // fixed share supply per pool
	ShareWeight uint64      `json:"share_weight"` // reward multiplier applied per share
}

// Pool is the ledger record for a single pool.
type Pool struct {
	ID        PoolID    `json:"id"`
	Kind      PoolKind  `json:"kind"`
	State     PoolState `json:"state"`
	CreatedAt time.Time `json:"created_at"`

	// RemainingMintQuota is the quota not yet withdrawn by holders.
	// It only decreases, via post-dissolution unlocked withdrawals.
	RemainingMintQuota sdkmath.Int `json:"remaining_mint_quota"`
	// UnlockedNotWithdrawn is the vested but not yet withdrawn amount.
	UnlockedNotWithdrawn sdkmath.Int `json:"unlocked_not_withdrawn"`
	// UnlockedPeriods counts the monthly unlock periods already applied,
	// guarding against double-application of the same period.
	UnlockedPeriods uint64 `json:"unlocked_periods"`

	// TotalShares is the sum of all holder share counts. Equals
	// Kind.ShareCount from the initial allocation onward.
	TotalShares uint64 `json:"total_shares"`
	// TotalWeightedShares is TotalShares scaled by the kind weight.
	TotalWeightedShares uint64 `json:"total_weighted_shares"`

	// AccProducedPerWeight is the monotonically non-decreasing fixed-point
	// accumulator for the production token, per unit of weighted share.
	AccProducedPerWeight sdkmath.Int `json:"acc_produced_per_weight"`
	// AccRewardPerWeight holds one accumulator per external reward token,
	// lazily created on first distribution of that token.
	AccRewardPerWeight map[string]sdkmath.Int `json:"acc_reward_per_weight"`
}

// HolderPosition is a holder's stake in one pool together with the reward
// debt bookkeeping that makes settlement O(1).
type HolderPosition struct {
	PoolID PoolID   `json:"pool_id"`
	Holder HolderID `json:"holder"`
	Shares uint64   `json:"shares"`

	// ProductionDebt is the portion of the production accumulator already
	// priced in to this position. Pending reward is the accumulator value for
	// the current shares minus this debt.
	ProductionDebt sdkmath.Int `json:"production_debt"`
	// RewardDebt holds the equivalent per external reward token, for every
	// token the holder has ever been exposed to.
	RewardDebt map[string]sdkmath.Int `json:"reward_debt"`

	// WithdrawnAfterDissolve is the cumulative principal withdrawn by this
	// holder post-dissolution. Audit bookkeeping only.
	WithdrawnAfterDissolve sdkmath.Int `json:"withdrawn_after_dissolve"`
}

// WeightedShares returns the holder's shares scaled by the pool kind weight.
func (p HolderPosition) WeightedShares(kind PoolKind) uint64 {
	return p.Shares * kind.ShareWeight
}

// PoolSnapshot is a condensed view of a pool's ledger state persisted to the
// journal for external indexers and the dashboard.
type PoolSnapshot struct {
	SnapshotID           int64     `json:"snapshot_id,omitempty"`
	PoolID               PoolID    `json:"pool_id"`
	KindName             string    `json:"kind_name"`
	State                string    `json:"state"`
	TotalShares          uint64    `json:"total_shares"`
	TotalWeightedShares  uint64    `json:"total_weighted_shares"`
	HolderCount          int       `json:"holder_count"`
	AccProducedPerWeight string    `json:"acc_produced_per_weight"`
	RemainingMintQuota   string    `json:"remaining_mint_quota"`
	UnlockedNotWithdrawn string    `json:"unlocked_not_withdrawn"`
	ActiveOrderCount     int       `json:"active_order_count"`
	Timestamp            time.Time `json:"timestamp"`
}
