/*

This file contains the unlock schedule engine. Vesting is a pure function of
pool creation time and the supplied current time; it reads no reward or
share state, so repeated evaluation is idempotent.

The production schedule locks the full quota for one year and then releases
4% per 30-day period across 25 periods, with the final period absorbing any
rounding remainder so the total is exactly the quota.

*/

package unlock

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/enclave-network/nodepool/internal/types"
)

// Schedule holds the vesting parameters applied to a pool's quota.
type Schedule struct {
	// LockPeriod is the cliff before any quota vests.
	LockPeriod time.Duration
	// PeriodLength is the spacing of unlock periods after the cliff.
	PeriodLength time.Duration
	// PeriodCount is the number of unlock periods.
	PeriodCount uint64
	// PercentPerPeriod is the integer percentage of quota vested per period.
	// The final period absorbs the remainder when PeriodCount*PercentPerPeriod
	// rounds short of 100.
	PercentPerPeriod uint64
}

// Validate rejects schedules that could never release the full quota.
func (s Schedule) Validate() error {
	if s.PeriodLength <= 0 {
		return fmt.Errorf("%w: unlock period length must be positive", types.ErrInvalidAmount)
	}
	if s.PeriodCount == 0 {
		return fmt.Errorf("%w: unlock period count must be positive", types.ErrInvalidAmount)
	}
	if s.PercentPerPeriod == 0 || s.PercentPerPeriod > 100 {
		return fmt.Errorf("%w: percent per period must be in (0, 100]", types.ErrInvalidAmount)
	}
	return nil
}

// ElapsedPeriods returns how many unlock periods have completed at now,
// clamped to PeriodCount. Zero while still inside the lock period.
func (s Schedule) ElapsedPeriods(createdAt, now time.Time) uint64 {
	cliff := createdAt.Add(s.LockPeriod)
	if now.Before(cliff) {
		return 0
	}
	elapsed := uint64(now.Sub(cliff) / s.PeriodLength)
	if elapsed > s.PeriodCount {
		return s.PeriodCount
	}
	return elapsed
}

// UnlockedAmount returns how much of quota has vested at now. The result is
// non-decreasing in now, never exceeds quota, and equals exactly quota once
// all periods have elapsed.
func (s Schedule) UnlockedAmount(quota sdkmath.Int, createdAt, now time.Time) sdkmath.Int {
	return s.AmountForPeriods(quota, s.ElapsedPeriods(createdAt, now))
}

// AmountForPeriods returns the vested amount after the given number of
// completed periods.
func (s Schedule) AmountForPeriods(quota sdkmath.Int, periods uint64) sdkmath.Int {
	if periods == 0 {
		return sdkmath.ZeroInt()
	}
	if periods >= s.PeriodCount {
		// Full release, no percentage-rounding dust on the last period.
		return quota
	}
	amount := quota.
		MulRaw(int64(periods)).
		MulRaw(int64(s.PercentPerPeriod)).
		QuoRaw(100)
	if amount.GT(quota) {
		return quota
	}
	return amount
}

// FullyVestedAt returns the first instant at which the entire quota is
// unlocked.
func (s Schedule) FullyVestedAt(createdAt time.Time) time.Time {
	return createdAt.Add(s.LockPeriod).Add(time.Duration(s.PeriodCount) * s.PeriodLength)
}
