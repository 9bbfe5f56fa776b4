// ./internal/state/snapshots.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/enclave-network/nodepool/internal/types"
)

// SavePoolSnapshot persists one condensed pool view to the journal.
func SavePoolSnapshot(s types.PoolSnapshot) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO pool_snapshots (
			pool_id, kind_name, pool_state, total_shares, total_weighted_shares,
			holder_count, acc_produced_per_weight, remaining_mint_quota,
			unlocked_not_withdrawn, active_order_count, snapshot_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := DB.Exec(query,
		uint64(s.PoolID), s.KindName, s.State, s.TotalShares, s.TotalWeightedShares,
		s.HolderCount, s.AccProducedPerWeight, s.RemainingMintQuota,
		s.UnlockedNotWithdrawn, s.ActiveOrderCount, s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot for pool %d: %w", s.PoolID, err)
	}
	return nil
}

// RecentSnapshots retrieves the newest snapshots for one pool, newest first.
func RecentSnapshots(poolID uint64, limit int) ([]types.PoolSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT snapshot_id, pool_id, kind_name, pool_state, total_shares,
		       total_weighted_shares, holder_count, acc_produced_per_weight,
		       remaining_mint_quota, unlocked_not_withdrawn, active_order_count,
		       snapshot_timestamp
		FROM pool_snapshots
		WHERE pool_id = $1
		ORDER BY snapshot_timestamp DESC
		LIMIT $2
	`

	rows, err := DB.Query(query, poolID, limit)
	if err != nil {
		log.Error().Err(err).Uint64("poolID", poolID).Msg("Failed to query recent snapshots")
		return nil, fmt.Errorf("failed to query recent snapshots: %w", err)
	}
	defer rows.Close()

	var out []types.PoolSnapshot
	for rows.Next() {
		var s types.PoolSnapshot
		if err := rows.Scan(
			&s.SnapshotID, &s.PoolID, &s.KindName, &s.State, &s.TotalShares,
			&s.TotalWeightedShares, &s.HolderCount, &s.AccProducedPerWeight,
			&s.RemainingMintQuota, &s.UnlockedNotWithdrawn, &s.ActiveOrderCount,
			&s.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return out, nil
}
