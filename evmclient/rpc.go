package evmclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/routeforge/dispatch-core/codec"
)

// RPCClient is the production Client, backed by a live JSON-RPC
// endpoint. Deploys are submitted and mined through bind.DeployContract
// the same way generated contract bindings do; governance callers sign
// with the keyed transactor handed to NewRPCClient.
type RPCClient struct {
	eth  *ethclient.Client
	auth *bind.TransactOpts
}

// NewRPCClient dials endpoint and returns a Client that signs
// deployment transactions with auth. Callers obtain auth from a
// decrypted keystore key via bind.NewKeyedTransactorWithChainID,
// mirroring tools/faucet/server.go's ethclient.DialContext plus
// crypto.HexToECDSA setup.
func NewRPCClient(ctx context.Context, endpoint string, auth *bind.TransactOpts) (*RPCClient, error) {
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "could not dial EVM endpoint %s", endpoint)
	}
	return &RPCClient{eth: eth, auth: auth}, nil
}

// CodeAt implements Client.
func (c *RPCClient) CodeAt(ctx context.Context, addr codec.Address) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, gethcommon.Address(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return code, nil
}

// CodeHash implements Client by hashing the result of CodeAt.
func (c *RPCClient) CodeHash(ctx context.Context, addr codec.Address) (codec.Digest, error) {
	code, err := c.CodeAt(ctx, addr)
	if err != nil {
		return codec.Digest{}, err
	}
	return codec.Hash(code), nil
}

// Deploy submits initCode as a contract-creation transaction, waits
// for it to be mined, and returns the resulting (CREATE, not CREATE2)
// address.
func (c *RPCClient) Deploy(ctx context.Context, initCode []byte) (codec.Address, error) {
	auth := *c.auth
	auth.Context = ctx

	nonce, err := c.eth.PendingNonceAt(ctx, auth.From)
	if err != nil {
		return codec.Address{}, errors.Wrap(err, "could not fetch pending nonce")
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)

	addr, tx, _, err := bind.DeployContract(&auth, abi.ABI{}, initCode, c.eth)
	if err != nil {
		return codec.Address{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := bind.WaitDeployed(ctx, c.eth, tx); err != nil {
		return codec.Address{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var out codec.Address
	copy(out[:], addr[:])
	return out, nil
}
