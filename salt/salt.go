// Package salt derives deterministic placement salts and predicts
// CREATE2 deployment addresses so that the same logical artifact
// resolves to the same address on every EVM-compatible chain.
//
// Salt derivation is spec-specific packed-encoding logic built on
// codec.PackedEncoder. Address prediction is delegated to
// go-ethereum's own crypto.CreateAddress2: that function already is
// the reference CREATE2 implementation the go-ethereum
// dependency ships, so reimplementing keccak256(0xff || ...) by hand
// here would just be a worse copy of code already pinned in go.mod.
package salt

import (
	"errors"
	"fmt"

	gethcommon "github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/routeforge/dispatch-core/codec"
)

// MaxInitCodeSize is the EIP-170-style bytecode size ceiling a
// deployable artifact must respect.
const MaxInitCodeSize = 24576

// ErrConfigInvalid is returned for empty names/versions, a required
// non-zero address that is zero, or bytecode exceeding MaxInitCodeSize.
var ErrConfigInvalid = errors.New("salt: invalid configuration")

// UniversalSalt derives the project-wide placement salt:
//
//	keccak256(project_tag || deployer || content_hash || be64(nonce) || version)
func UniversalSalt(projectTag string, deployer codec.Address, contentHash codec.Digest, nonce uint64, version string) (codec.Digest, error) {
	if projectTag == "" || version == "" {
		return codec.Digest{}, fmt.Errorf("%w: project_tag and version must be non-empty", ErrConfigInvalid)
	}
	return codec.NewPackedEncoder().
		String(projectTag).
		Address(deployer).
		Digest(contentHash).
		Uint64(nonce).
		String(version).
		Sum(), nil
}

// FacetSalt derives a facet-scoped salt distinct from the universal
// one but still fully deterministic:
//
//	keccak256("chunk:" || keccak256(name || version || be64(nonce)))
func FacetSalt(name, version string, nonce uint64) (codec.Digest, error) {
	if name == "" || version == "" {
		return codec.Digest{}, fmt.Errorf("%w: name and version must be non-empty", ErrConfigInvalid)
	}
	inner := codec.NewPackedEncoder().String(name).String(version).Uint64(nonce).Sum()
	return codec.NewPackedEncoder().String("chunk:").Digest(inner).Sum(), nil
}

// DispatcherSalt derives the per-dispatcher-deployment salt:
//
//	keccak256(version || network_tag || admin)
func DispatcherSalt(version, networkTag string, admin codec.Address) (codec.Digest, error) {
	if version == "" || networkTag == "" {
		return codec.Digest{}, fmt.Errorf("%w: version and network_tag must be non-empty", ErrConfigInvalid)
	}
	if admin.IsZero() {
		return codec.Digest{}, fmt.Errorf("%w: admin address must be non-zero", ErrConfigInvalid)
	}
	return codec.NewPackedEncoder().
		String(version).
		String(networkTag).
		Address(admin).
		Sum(), nil
}

// ValidateInitCode rejects bytecode that exceeds the EIP-170-style
// deployed-code size ceiling. Called before a salt/address pair is
// handed to the EVM collaborator for deployment.
func ValidateInitCode(initCode []byte) error {
	if len(initCode) == 0 {
		return fmt.Errorf("%w: init code must be non-empty", ErrConfigInvalid)
	}
	if len(initCode) > MaxInitCodeSize {
		return fmt.Errorf("%w: init code is %d bytes, exceeds %d byte limit", ErrConfigInvalid, len(initCode), MaxInitCodeSize)
	}
	return nil
}

// CREATE2Address predicts the deployment address for
// (deployer, salt, init_code_hash) using go-ethereum's CreateAddress2,
// so that a post-deployment equality check against the predicted
// address (Property D) exercises the exact same code path a live
// deployment would.
func CREATE2Address(deployer codec.Address, salt codec.Digest, initCodeHash codec.Digest) codec.Address {
	gethAddr := gethcrypto.CreateAddress2(gethcommon.Address(deployer), [32]byte(salt), initCodeHash[:])
	var out codec.Address
	copy(out[:], gethAddr[:])
	return out
}
