// Package evmclient defines the narrow "EVM collaborator" capability
// set the core treats as an external dependency: querying deployed
// code and its hash, and deploying new bytecode. The core never talks
// to a transaction pool or gas market directly; it only needs these
// three operations, leaving on-chain virtual-machine semantics, gas
// metering, and transaction submission to the collaborator.
package evmclient

import (
	"context"
	"fmt"

	"github.com/routeforge/dispatch-core/codec"
)

// Client is the capability set the dispatcher's activate step and the
// manifest/deployment tooling depend on.
type Client interface {
	// CodeAt returns the current runtime bytecode deployed at addr.
	CodeAt(ctx context.Context, addr codec.Address) ([]byte, error)
	// CodeHash returns keccak256(CodeAt(addr)); implementations may
	// have a cheaper path to this than hashing the full bytecode
	// themselves (e.g. an eth_getCode + local hash, or a direct
	// state-trie lookup).
	CodeHash(ctx context.Context, addr codec.Address) (codec.Digest, error)
	// Deploy submits initCode for deployment and returns the address
	// it was placed at. The core does not inspect the returned
	// address against its own CREATE2 prediction; callers (the
	// salt/CREATE2Address predictor plus a post-deploy equality
	// check) are responsible for that comparison.
	Deploy(ctx context.Context, initCode []byte) (codec.Address, error)
}

// ErrUnavailable wraps a Client error to signal the collaborator
// itself could not be reached (as opposed to it answering with a
// legitimate "no code here" result).
var ErrUnavailable = fmt.Errorf("evmclient: collaborator unavailable")
