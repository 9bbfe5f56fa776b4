/*

This file contains unlocked-quota withdrawal. Production and principal
withdrawal are mutually exclusive phases: a pool must be dissolved before
any of its vested quota can leave custody, so a holder can never earn
ongoing yield and drain the underlying quota at the same time.

*/

package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/enclave-network/nodepool/internal/events"
	"github.com/enclave-network/nodepool/internal/types"
)

// UnlockedAmount returns the pool's total vested quota at the current clock
// time. View only; it does not apply unlock periods to the pool record.
func (l *Ledger) UnlockedAmount(poolID types.PoolID) (sdkmath.Int, error) {
	amount := sdkmath.ZeroInt()
	err := l.withPool(poolID, func(ps *poolState) error {
		amount = l.schedule.UnlockedAmount(ps.pool.Kind.Quota, ps.pool.CreatedAt, l.clock.Now())
		return nil
	})
	return amount, err
}

// WithdrawUnlocked pays out part of the pool's vested quota to a current
// shareholder of a dissolved pool. The bank credit happens before any
// bookkeeping change, so a failed payout leaves the pool untouched.
func (l *Ledger) WithdrawUnlocked(poolID types.PoolID, holder types.HolderID, amount sdkmath.Int) error {
	err := l.withPool(poolID, func(ps *poolState) error {
		if ps.pool.State != types.PoolDissolved {
			return fmt.Errorf("%w: pool %d must be dissolved before principal withdrawal", types.ErrInvalidState, poolID)
		}
		pos, ok := ps.positions[holder]
		if !ok || pos.Shares == 0 {
			return fmt.Errorf("%w: %s holds no shares in pool %d", types.ErrUnauthorized, holder, poolID)
		}
		if amount.IsNil() || !amount.IsPositive() {
			return fmt.Errorf("%w: withdrawal amount must be positive", types.ErrInvalidAmount)
		}

		l.applyUnlockLocked(ps)

		if amount.GT(ps.pool.UnlockedNotWithdrawn) {
			return fmt.Errorf("%w: pool %d has %s unlocked, requested %s",
				types.ErrInsufficientShares, poolID, ps.pool.UnlockedNotWithdrawn, amount)
		}
		if err := l.bank.Credit(holder, l.producedDenom, amount); err != nil {
			return fmt.Errorf("unlocked withdrawal payout failed for %s: %w", holder, err)
		}

		ps.pool.UnlockedNotWithdrawn = ps.pool.UnlockedNotWithdrawn.Sub(amount)
		ps.pool.RemainingMintQuota = ps.pool.RemainingMintQuota.Sub(amount)
		pos.WithdrawnAfterDissolve = pos.WithdrawnAfterDissolve.Add(amount)
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info().
		Uint64("poolID", uint64(poolID)).
		Str("holder", string(holder)).
		Str("amount", amount.String()).
		Msg("Unlocked quota withdrawn")

	ev := events.New(events.UnlockedWithdrawn, uint64(poolID), l.clock.Now())
	ev.Holder = string(holder)
	ev.Token = l.producedDenom
	ev.Amount = amount.String()
	l.sink.Emit(ev)
	return nil
}

// applyUnlockLocked folds newly elapsed unlock periods into the pool's
// withdrawable balance. UnlockedPeriods guards idempotency: each period is
// applied exactly once no matter how often this runs.
func (l *Ledger) applyUnlockLocked(ps *poolState) {
	elapsed := l.schedule.ElapsedPeriods(ps.pool.CreatedAt, l.clock.Now())
	if elapsed <= ps.pool.UnlockedPeriods {
		return
	}
	newTotal := l.schedule.AmountForPeriods(ps.pool.Kind.Quota, elapsed)
	prevTotal := l.schedule.AmountForPeriods(ps.pool.Kind.Quota, ps.pool.UnlockedPeriods)
	ps.pool.UnlockedNotWithdrawn = ps.pool.UnlockedNotWithdrawn.Add(newTotal.Sub(prevTotal))
	ps.pool.UnlockedPeriods = elapsed
}
