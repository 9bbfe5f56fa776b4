/*

This file contains the dissolution state machine. A pool dissolves in a
single step once every shareholder snapshotted at proposal time has
approved; unanimity is required because dissolution permanently ends reward
production for all co-owners and opens the shared quota for withdrawal.

*/

package ledger

import (
	"fmt"

	"github.com/enclave-network/nodepool/internal/events"
	"github.com/enclave-network/nodepool/internal/types"
)

// ProposeDissolve opens a dissolution vote for the pool, snapshotting the
// current shareholder set as the required approval set. The proposer
// approves implicitly, so a single-holder pool dissolves immediately.
func (l *Ledger) ProposeDissolve(poolID types.PoolID, proposer types.HolderID) error {
	var completed bool
	err := l.withPool(poolID, func(ps *poolState) error {
		if ps.pool.State != types.PoolLive {
			return fmt.Errorf("%w: pool %d is %s", types.ErrInvalidState, poolID, ps.pool.State)
		}
		if ps.proposal != nil {
			return fmt.Errorf("%w: pool %d already has an active dissolution proposal", types.ErrInvalidState, poolID)
		}
		pos, ok := ps.positions[proposer]
		if !ok || pos.Shares == 0 {
			return fmt.Errorf("%w: %s holds no shares in pool %d", types.ErrUnauthorized, proposer, poolID)
		}

		required := make(map[types.HolderID]bool)
		for holder, p := range ps.positions {
			if p.Shares > 0 {
				required[holder] = true
			}
		}
		ps.proposal = &types.DissolutionProposal{
			PoolID:            poolID,
			Proposer:          proposer,
			CreatedAt:         l.clock.Now(),
			RequiredApprovals: required,
			Approvals:         map[types.HolderID]bool{proposer: true},
		}

		if ps.proposal.Complete() {
			l.dissolveLocked(ps)
			completed = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info().
		Uint64("poolID", uint64(poolID)).
		Str("proposer", string(proposer)).
		Bool("completed", completed).
		Msg("Dissolution proposed")

	ev := events.New(events.DissolutionProposed, uint64(poolID), l.clock.Now())
	ev.Holder = string(proposer)
	l.sink.Emit(ev)
	if completed {
		l.sink.Emit(events.New(events.DissolutionCompleted, uint64(poolID), l.clock.Now()))
	}
	return nil
}

// ApproveDissolve records one snapshotted shareholder's approval. The pool
// transitions to Dissolved on the final approval and the proposal is
// cleared.
func (l *Ledger) ApproveDissolve(poolID types.PoolID, holder types.HolderID) error {
	var completed bool
	err := l.withPool(poolID, func(ps *poolState) error {
		if ps.pool.State != types.PoolLive {
			return fmt.Errorf("%w: pool %d is %s", types.ErrInvalidState, poolID, ps.pool.State)
		}
		if ps.proposal == nil {
			return fmt.Errorf("%w: pool %d has no active dissolution proposal", types.ErrInvalidState, poolID)
		}
		if !ps.proposal.RequiredApprovals[holder] {
			return fmt.Errorf("%w: %s is not a snapshotted shareholder of pool %d", types.ErrUnauthorized, holder, poolID)
		}
		if ps.proposal.Approvals[holder] {
			return fmt.Errorf("%w: %s already approved dissolution of pool %d", types.ErrInvalidState, holder, poolID)
		}

		ps.proposal.Approvals[holder] = true
		if ps.proposal.Complete() {
			l.dissolveLocked(ps)
			completed = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info().
		Uint64("poolID", uint64(poolID)).
		Str("holder", string(holder)).
		Bool("completed", completed).
		Msg("Dissolution approved")

	ev := events.New(events.DissolutionApproved, uint64(poolID), l.clock.Now())
	ev.Holder = string(holder)
	l.sink.Emit(ev)
	if completed {
		l.sink.Emit(events.New(events.DissolutionCompleted, uint64(poolID), l.clock.Now()))
	}
	return nil
}

// dissolveLocked finalizes the transition. Terminal: rewards stop, new
// proposals are rejected, unlocked withdrawal becomes valid.
func (l *Ledger) dissolveLocked(ps *poolState) {
	ps.pool.State = types.PoolDissolved
	ps.proposal = nil
}

// DissolutionProposal returns a copy of the pool's active proposal, or
// ErrNotFound when none exists.
func (l *Ledger) DissolutionProposal(poolID types.PoolID) (types.DissolutionProposal, error) {
	var out types.DissolutionProposal
	err := l.withPool(poolID, func(ps *poolState) error {
		if ps.proposal == nil {
			return fmt.Errorf("%w: no active dissolution proposal for pool %d", types.ErrNotFound, poolID)
		}
		out = types.DissolutionProposal{
			PoolID:            ps.proposal.PoolID,
			Proposer:          ps.proposal.Proposer,
			CreatedAt:         ps.proposal.CreatedAt,
			RequiredApprovals: copyHolderSet(ps.proposal.RequiredApprovals),
			Approvals:         copyHolderSet(ps.proposal.Approvals),
		}
		return nil
	})
	return out, err
}

func copyHolderSet(in map[types.HolderID]bool) map[types.HolderID]bool {
	out := make(map[types.HolderID]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
