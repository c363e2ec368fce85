package dispatcher

import (
	"errors"

	"github.com/routeforge/dispatch-core/codec"
)

// Precondition errors: the caller asked for an operation the current
// state cannot perform, independent of the data supplied.
var (
	ErrFrozen                     = errors.New("dispatcher: frozen")
	ErrPaused                     = errors.New("dispatcher: paused")
	ErrNoPendingRoot              = errors.New("dispatcher: no pending root")
	ErrEpochNotStrictlyIncreasing = errors.New("dispatcher: epoch not strictly increasing")
	ErrRootConsumed               = errors.New("dispatcher: root already consumed")
	ErrActivationNotReady         = errors.New("dispatcher: activation not ready")
	ErrBatchTooLarge              = errors.New("dispatcher: batch too large")
	ErrDuplicateSelector          = errors.New("dispatcher: duplicate selector in batch")
	ErrUnauthorized               = errors.New("dispatcher: caller lacks required role")
)

// Integrity errors: the data supplied, or the observed world, failed a
// check the core is responsible for enforcing.
var (
	ErrInvalidProof      = errors.New("dispatcher: invalid merkle proof")
	ErrUnknownSelector   = errors.New("dispatcher: unknown selector")
	ErrZeroRoot          = errors.New("dispatcher: root must be non-zero")
)

// CodehashMismatchError reports that a facet's observed runtime code
// hash no longer matches the value pinned at apply time.
type CodehashMismatchError struct {
	Selector codec.Selector
	Expected codec.Digest
	Got      codec.Digest
}

func (e *CodehashMismatchError) Error() string {
	return "dispatcher: code hash mismatch for selector " + e.Selector.String() +
		": expected " + e.Expected.String() + ", got " + e.Got.String()
}

// Collaborator errors surface a failure reaching an external
// dependency (the EVM collaborator) rather than a logical violation.
var (
	ErrEvmClientUnavailable = errors.New("dispatcher: evm client unavailable")
)
