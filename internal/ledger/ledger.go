/*

This file contains the pool ledger: the registry of pools, the per-holder
share positions, and the settle-then-move share transfer primitive that
every share mutation in the system funnels through.

Settlement before mutation is the central correctness invariant. Any
operation that changes a holder's share count first reconciles that
holder's reward debts against the current accumulators, so past accrual is
never retroactively altered by the new share count.

*/

package ledger

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/enclave-network/nodepool/internal/bank"
	"github.com/enclave-network/nodepool/internal/clock"
	"github.com/enclave-network/nodepool/internal/events"
	"github.com/enclave-network/nodepool/internal/fixedpoint"
	"github.com/enclave-network/nodepool/internal/logger"
	"github.com/enclave-network/nodepool/internal/types"
	"github.com/enclave-network/nodepool/internal/unlock"
)

// poolState bundles one pool with its holder positions and dissolution
// proposal. Operations on the same pool serialize on mu; different pools
// proceed independently.
type poolState struct {
	mu        sync.Mutex
	pool      types.Pool
	positions map[types.HolderID]*types.HolderPosition
	proposal  *types.DissolutionProposal
}

// Ledger owns all pool state and enforces share conservation.
type Ledger struct {
	mu         sync.RWMutex
	pools      map[types.PoolID]*poolState
	nextPoolID types.PoolID

	kinds         map[string]types.PoolKind
	schedule      unlock.Schedule
	producedDenom string

	bank  bank.TokenBank
	clock clock.Clock
	sink  events.Sink

	logger zerolog.Logger
}

// Config holds the collaborators and parameters for creating a Ledger.
type Config struct {
	Kinds         map[string]types.PoolKind
	Schedule      unlock.Schedule
	ProducedDenom string
	Bank          bank.TokenBank
	Clock         clock.Clock
	Sink          events.Sink
}

// New creates a Ledger with dependency injection.
func New(cfg Config) (*Ledger, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ledger configuration validation failed: %w", err)
	}

	kinds := make(map[string]types.PoolKind, len(cfg.Kinds))
	for name, kind := range cfg.Kinds {
		kinds[name] = kind
	}

	sink := cfg.Sink
	if sink == nil {
		sink = events.Nop{}
	}

	l := &Ledger{
		pools:         make(map[types.PoolID]*poolState),
		kinds:         kinds,
		schedule:      cfg.Schedule,
		producedDenom: cfg.ProducedDenom,
		bank:          cfg.Bank,
		clock:         cfg.Clock,
		sink:          sink,
		logger:        logger.GetForComponent("ledger"),
	}

	l.logger.Info().
		Int("kinds", len(kinds)).
		Str("producedDenom", cfg.ProducedDenom).
		Msg("Ledger created")

	return l, nil
}

func validateConfig(cfg Config) error {
	if len(cfg.Kinds) == 0 {
		return fmt.Errorf("at least one pool kind is required")
	}
	for name, kind := range cfg.Kinds {
		if kind.ShareCount == 0 || kind.ShareWeight == 0 {
			return fmt.Errorf("pool kind %q must have positive share count and weight", name)
		}
		if kind.Quota.IsNil() || !kind.Quota.IsPositive() {
			return fmt.Errorf("pool kind %q must have a positive quota", name)
		}
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return fmt.Errorf("unlock schedule invalid: %w", err)
	}
	if cfg.ProducedDenom == "" {
		return fmt.Errorf("produced denom cannot be empty")
	}
	if cfg.Bank == nil {
		return fmt.Errorf("token bank cannot be nil")
	}
	if cfg.Clock == nil {
		return fmt.Errorf("clock cannot be nil")
	}
	return nil
}

// CreatePool initializes a new pool of the given kind with no shares
// allocated. Share allocation is a separate MintInitialShares step performed
// by the minting collaborator.
func (l *Ledger) CreatePool(kindName string) (types.PoolID, error) {
	kind, ok := l.kinds[kindName]
	if !ok {
		return 0, fmt.Errorf("%w: pool kind %q", types.ErrNotFound, kindName)
	}

	now := l.clock.Now()

	l.mu.Lock()
	l.nextPoolID++
	id := l.nextPoolID
	l.pools[id] = &poolState{
		pool: types.Pool{
			ID:                   id,
			Kind:                 kind,
			State:                types.PoolLive,
			CreatedAt:            now,
			RemainingMintQuota:   kind.Quota,
			UnlockedNotWithdrawn: sdkmath.ZeroInt(),
			AccProducedPerWeight: sdkmath.ZeroInt(),
			AccRewardPerWeight:   make(map[string]sdkmath.Int),
		},
		positions: make(map[types.HolderID]*types.HolderPosition),
	}
	l.mu.Unlock()

	l.logger.Info().
		Uint64("poolID", uint64(id)).
		Str("kind", kindName).
		Msg("Pool created")

	l.sink.Emit(events.New(events.PoolCreated, uint64(id), now))
	return id, nil
}

// MintInitialShares allocates the pool's entire fixed share supply to the
// initial holder. No settlement is needed: no distribution can have happened
// against an empty pool, so the new position owes nothing for history.
func (l *Ledger) MintInitialShares(poolID types.PoolID, holder types.HolderID) error {
	return l.withPool(poolID, func(ps *poolState) error {
		if ps.pool.State != types.PoolLive {
			return fmt.Errorf("%w: pool %d is %s", types.ErrInvalidState, poolID, ps.pool.State)
		}
		if ps.pool.TotalShares != 0 {
			return fmt.Errorf("%w: pool %d shares already minted", types.ErrInvalidState, poolID)
		}
		if holder == "" {
			return fmt.Errorf("%w: holder cannot be empty", types.ErrInvalidAmount)
		}

		kind := ps.pool.Kind
		ps.positions[holder] = &types.HolderPosition{
			PoolID:                 poolID,
			Holder:                 holder,
			Shares:                 kind.ShareCount,
			ProductionDebt:         sdkmath.ZeroInt(),
			RewardDebt:             make(map[string]sdkmath.Int),
			WithdrawnAfterDissolve: sdkmath.ZeroInt(),
		}
		ps.pool.TotalShares = kind.ShareCount
		ps.pool.TotalWeightedShares = kind.ShareCount * kind.ShareWeight

		l.logger.Info().
			Uint64("poolID", uint64(poolID)).
			Str("holder", string(holder)).
			Uint64("shares", kind.ShareCount).
			Msg("Initial shares minted")

		ev := events.New(events.SharesMinted, uint64(poolID), l.clock.Now())
		ev.Holder = string(holder)
		ev.Shares = kind.ShareCount
		l.sink.Emit(ev)
		return nil
	})
}

// TransferShares moves count shares from one holder to another inside a
// pool, settling both holders' reward debts first.
func (l *Ledger) TransferShares(poolID types.PoolID, from, to types.HolderID, count uint64) error {
	return l.TransferSharesFunded(poolID, from, to, count, nil)
}

// TransferSharesFunded is TransferShares with an optional payment step
// executed under the pool lock, after the transfer is validated and before
// any share movement. If pay fails the transfer is aborted with no state
// change; if pay succeeds the share movement cannot fail. The marketplace
// uses this to make payment and share transfer one atomic unit.
func (l *Ledger) TransferSharesFunded(poolID types.PoolID, from, to types.HolderID, count uint64, pay func() error) error {
	var transferred bool
	err := l.withPool(poolID, func(ps *poolState) error {
		if ps.pool.State == types.PoolDissolved {
			return fmt.Errorf("%w: pool %d is dissolved", types.ErrInvalidState, poolID)
		}
		if count == 0 {
			return fmt.Errorf("%w: transfer count must be positive", types.ErrInvalidAmount)
		}
		if from == to {
			return fmt.Errorf("%w: cannot transfer shares to self", types.ErrInvalidAmount)
		}
		fromPos, ok := ps.positions[from]
		if !ok || fromPos.Shares < count {
			have := uint64(0)
			if ok {
				have = fromPos.Shares
			}
			return fmt.Errorf("%w: holder %s has %d shares in pool %d, needs %d",
				types.ErrInsufficientShares, from, have, poolID, count)
		}

		if pay != nil {
			if err := pay(); err != nil {
				return err
			}
		}

		// Settle both holders before touching share counts.
		fromPending := l.settleOut(ps, fromPos)

		toPos, existed := ps.positions[to]
		var toPending settledPending
		if existed {
			toPending = l.settleOut(ps, toPos)
		} else {
			toPos = &types.HolderPosition{
				PoolID:                 poolID,
				Holder:                 to,
				RewardDebt:             make(map[string]sdkmath.Int),
				WithdrawnAfterDissolve: sdkmath.ZeroInt(),
			}
			toPending = newSettledPending()
			ps.positions[to] = toPos
		}

		fromPos.Shares -= count
		toPos.Shares += count

		// Re-base debts against the new share counts so each holder's
		// already-accrued pending is preserved exactly.
		l.settleIn(ps, fromPos, fromPending)
		l.settleIn(ps, toPos, toPending)

		l.reapIfEmpty(ps, from)
		transferred = true
		return nil
	})
	if err != nil {
		return err
	}
	if transferred {
		l.logger.Debug().
			Uint64("poolID", uint64(poolID)).
			Str("from", string(from)).
			Str("to", string(to)).
			Uint64("count", count).
			Msg("Shares transferred")

		ev := events.New(events.ShareTransferred, uint64(poolID), l.clock.Now())
		ev.Holder = string(from)
		ev.Counterparty = string(to)
		ev.Shares = count
		l.sink.Emit(ev)
	}
	return nil
}

// settledPending carries a holder's accrued-but-unclaimed rewards across a
// share-count change, in token units.
type settledPending struct {
	produced sdkmath.Int
	rewards  map[string]sdkmath.Int
}

func newSettledPending() settledPending {
	return settledPending{produced: sdkmath.ZeroInt(), rewards: make(map[string]sdkmath.Int)}
}

// settleOut computes the holder's pending amounts for the production token
// and every reward token the pool has ever distributed, against the current
// share count.
func (l *Ledger) settleOut(ps *poolState, pos *types.HolderPosition) settledPending {
	weighted := pos.WeightedShares(ps.pool.Kind)
	out := newSettledPending()
	out.produced = pendingAmount(weighted, ps.pool.AccProducedPerWeight, pos.ProductionDebt)
	for token, acc := range ps.pool.AccRewardPerWeight {
		debt, ok := pos.RewardDebt[token]
		if !ok {
			debt = sdkmath.ZeroInt()
		}
		out.rewards[token] = pendingAmount(weighted, acc, debt)
	}
	return out
}

// settleIn re-bases the holder's debts against the new share count so that
// the carried pending amounts remain claimable unchanged. Debts may go
// negative when a holder exits with unclaimed rewards.
func (l *Ledger) settleIn(ps *poolState, pos *types.HolderPosition, carried settledPending) {
	weighted := pos.WeightedShares(ps.pool.Kind)
	pos.ProductionDebt = fixedpoint.WeightedDebt(weighted, ps.pool.AccProducedPerWeight).Sub(carried.produced)
	for token, acc := range ps.pool.AccRewardPerWeight {
		pending, ok := carried.rewards[token]
		if !ok {
			pending = sdkmath.ZeroInt()
		}
		pos.RewardDebt[token] = fixedpoint.WeightedDebt(weighted, acc).Sub(pending)
	}
}

// pendingAmount returns the claimable token units for weighted shares
// against an accumulator and the holder's debt.
func pendingAmount(weighted uint64, acc, debt sdkmath.Int) sdkmath.Int {
	return fixedpoint.WeightedDebt(weighted, acc).Sub(debt)
}

// reapIfEmpty removes a position once it holds no shares and no claimable
// rewards. Positions with zero shares but unclaimed pending stay until the
// holder claims.
func (l *Ledger) reapIfEmpty(ps *poolState, holder types.HolderID) {
	pos, ok := ps.positions[holder]
	if !ok || pos.Shares != 0 {
		return
	}
	if pendingAmount(0, ps.pool.AccProducedPerWeight, pos.ProductionDebt).IsPositive() {
		return
	}
	for token, acc := range ps.pool.AccRewardPerWeight {
		debt, ok := pos.RewardDebt[token]
		if !ok {
			debt = sdkmath.ZeroInt()
		}
		if pendingAmount(0, acc, debt).IsPositive() {
			return
		}
	}
	delete(ps.positions, holder)
}

// withPool runs fn with the pool's lock held. Same-pool operations are fully
// serialized; operations on different pools may run concurrently.
func (l *Ledger) withPool(poolID types.PoolID, fn func(*poolState) error) error {
	l.mu.RLock()
	ps, ok := l.pools[poolID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: pool %d", types.ErrNotFound, poolID)
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return fn(ps)
}
