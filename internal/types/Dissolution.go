/*

This file contains the dissolution proposal type. Dissolution requires the
unanimous approval of every shareholder snapshotted at proposal time; once
complete the pool is terminal and its unlocked quota becomes withdrawable.

*/

package types

import "time"

// DissolutionProposal tracks an in-flight dissolution vote for one pool.
// At most one proposal exists per pool at a time.
type DissolutionProposal struct {
	PoolID    PoolID    `json:"pool_id"`
	Proposer  HolderID  `json:"proposer"`
	CreatedAt time.Time `json:"created_at"`

	// RequiredApprovals is the full shareholder set at proposal time.
	RequiredApprovals map[HolderID]bool `json:"required_approvals"`
	// Approvals is the subset of RequiredApprovals that has approved so far.
	Approvals map[HolderID]bool `json:"approvals"`
}

// Complete reports whether every snapshotted shareholder has approved.
func (p *DissolutionProposal) Complete() bool {
	for holder := range p.RequiredApprovals {
		if !p.Approvals[holder] {
			return false
		}
	}
	return true
}
