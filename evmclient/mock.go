package evmclient

import (
	"context"
	"sync"

	"github.com/routeforge/dispatch-core/codec"
)

// MockClient is an in-memory Client keyed by address, used by core
// tests that need to simulate code-hash drift between a route's
// apply and its activation without standing up a real EVM.
type MockClient struct {
	mu    sync.RWMutex
	code  map[codec.Address][]byte
	nonce uint64
}

// NewMockClient returns an empty mock collaborator.
func NewMockClient() *MockClient {
	return &MockClient{code: make(map[codec.Address][]byte)}
}

// SetCode installs addr's current runtime bytecode, simulating a
// redeploy/upgrade observed the next time CodeHash is queried.
func (m *MockClient) SetCode(addr codec.Address, code []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(code))
	copy(cp, code)
	m.code[addr] = cp
}

// CodeAt implements Client.
func (m *MockClient) CodeAt(_ context.Context, addr codec.Address) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte{}, m.code[addr]...), nil
}

// CodeHash implements Client.
func (m *MockClient) CodeHash(_ context.Context, addr codec.Address) (codec.Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return codec.Hash(m.code[addr]), nil
}

// Deploy implements Client by assigning the next sequential mock
// address and installing initCode as the deployed code verbatim (the
// mock has no constructor/runtime-code distinction).
func (m *MockClient) Deploy(_ context.Context, initCode []byte) (codec.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonce++
	var addr codec.Address
	addr[19] = byte(m.nonce)
	addr[18] = byte(m.nonce >> 8)
	cp := make([]byte, len(initCode))
	copy(cp, initCode)
	m.code[addr] = cp
	return addr, nil
}
