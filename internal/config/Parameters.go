/*

This file contains the default pool kind templates and the default unlock
schedule. These values mirror the launch configuration of the node pool
program and are used unless the operator supplies overrides at engine
construction.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/enclave-network/nodepool/internal/types"
	"github.com/enclave-network/nodepool/internal/unlock"
)

// Pool kind names.
const (
	KindStandard = "Standard"
	KindPremium  = "Premium"
)

// DefaultPoolKinds provides the launch pool templates.
//
// Both kinds carry ten shares so a pool can be split among up to ten
// co-owners; the Premium kind earns six times the reward weight per share
// and carries a five times larger production quota.
var DefaultPoolKinds = map[string]types.PoolKind{
	KindStandard: {
		Name:        KindStandard,
		Quota:       sdkmath.NewIntWithDecimal(20_000, 18),
		ShareCount:  10,
		ShareWeight: 1,
	},
	KindPremium: {
		Name:        KindPremium,
		Quota:       sdkmath.NewIntWithDecimal(100_000, 18),
		ShareCount:  10,
		ShareWeight: 6,
	},
}

// DefaultUnlockSchedule provides the launch vesting parameters: a one year
// cliff followed by 4% of quota every 30 days across 25 periods. The final
// period releases whatever remains, so the sum is exactly 100% of quota.
var DefaultUnlockSchedule = unlock.Schedule{
	LockPeriod:       365 * 24 * time.Hour,
	PeriodLength:     30 * 24 * time.Hour,
	PeriodCount:      25,
	PercentPerPeriod: 4,
}
