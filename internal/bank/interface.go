package bank

import (
	sdkmath "cosmossdk.io/math"

	"github.com/enclave-network/nodepool/internal/types"
)

// TokenBank defines the interface for the token-custody collaborator.
// This interface abstracts away the specific settlement rail (chain client,
// internal balance service, test double); the core only requires that each
// call succeeds or fails synchronously, with no partial movement.
type TokenBank interface {
	// Credit pays amount of token to the holder from pool custody.
	Credit(holder types.HolderID, token string, amount sdkmath.Int) error

	// Debit collects amount of token from the holder into pool custody.
	Debit(holder types.HolderID, token string, amount sdkmath.Int) error

	// Transfer moves amount of token between two holders as one atomic unit.
	Transfer(from, to types.HolderID, token string, amount sdkmath.Int) error
}
