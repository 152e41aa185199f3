package core

import "errors"

// Shared taxonomy-level sentinels used across multiple components.
// Component-local errors (mempool, state store, DKG, quorum) live next to
// the component that raises them.
var (
	// ErrValidationBadSignature: validation class, invalid signature.
	ErrValidationBadSignature = errors.New("validation: signature does not verify")
)
