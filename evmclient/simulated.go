package evmclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"

	"github.com/routeforge/dispatch-core/codec"
)

// SimulatedClient adapts go-ethereum's in-memory backends.SimulatedBackend
// to the Client interface, the same kind of test double driven
// through accounts/abi/bind in shared/trieutil/sparse_merkle_test.go
// and sharding/notary/service_test.go. It lets integration tests
// exercise real contract deployment (CREATE, see Deploy) and code-hash
// plumbing without a live chain.
type SimulatedClient struct {
	backend *backends.SimulatedBackend
	auth    *bind.TransactOpts
}

// NewSimulatedClient creates a funded simulated chain and a deploy
// account, mirroring the usual test setup() helpers for this backend.
func NewSimulatedClient(auth *bind.TransactOpts, fundingWei *big.Int) *SimulatedClient {
	alloc := core.GenesisAlloc{
		auth.From: {Balance: fundingWei},
	}
	backend := backends.NewSimulatedBackend(alloc, 8_000_000)
	return &SimulatedClient{backend: backend, auth: auth}
}

// Commit mines a block, making pending deploys observable to CodeAt
// and CodeHash.
func (c *SimulatedClient) Commit() {
	c.backend.Commit()
}

// CodeAt implements Client.
func (c *SimulatedClient) CodeAt(ctx context.Context, addr codec.Address) ([]byte, error) {
	code, err := c.backend.CodeAt(ctx, gethcommon.Address(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return code, nil
}

// CodeHash implements Client by hashing the result of CodeAt.
func (c *SimulatedClient) CodeHash(ctx context.Context, addr codec.Address) (codec.Digest, error) {
	code, err := c.CodeAt(ctx, addr)
	if err != nil {
		return codec.Digest{}, err
	}
	return codec.Hash(code), nil
}

// Deploy submits initCode as a contract-creation transaction and
// returns its (CREATE, not CREATE2) address; callers that need CREATE2
// placement should deploy through a factory contract, a concern
// orchestrated outside this core.
func (c *SimulatedClient) Deploy(ctx context.Context, initCode []byte) (codec.Address, error) {
	addr, _, _, err := bind.DeployContract(c.auth, abi.ABI{}, initCode, c.backend)
	if err != nil {
		return codec.Address{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.backend.Commit()
	var out codec.Address
	copy(out[:], addr[:])
	return out, nil
}
