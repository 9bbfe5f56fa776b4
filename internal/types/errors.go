package types

import "errors"

// Error kinds for all recoverable, caller-visible ledger failures. Every
// operation aborts with no state change when returning one of these; callers
// match with errors.Is.
var (
	// ErrInvalidAmount covers zero or negative amounts, including
	// distributions against a pool with no weighted shares.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientShares covers transfers, listings and withdrawals that
	// exceed a holder's unreserved balance.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInvalidState covers operations against a pool or order in the wrong
	// lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnauthorized covers callers acting on positions, orders or proposals
	// they do not control.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers unknown pool, holder and order identifiers.
	ErrNotFound = errors.New("not found")
)
