package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/routeforge/dispatch-core/codec"
	"github.com/routeforge/dispatch-core/evmclient"
	"github.com/routeforge/dispatch-core/merkle"
)

func mkAddr(b byte) codec.Address {
	var a codec.Address
	a[19] = b
	return a
}

func mkSelector(b byte) codec.Selector {
	var s codec.Selector
	s[3] = b
	return s
}

func mkDigest(b byte) codec.Digest {
	var d codec.Digest
	d[0] = b
	return d
}

type harness struct {
	d      *Dispatcher
	evm    *evmclient.MockClient
	admin  codec.Address
	guard  codec.Address
	caller codec.Address
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	admin := mkAddr(0x01)
	guard := mkAddr(0x02)
	caller := mkAddr(0x03)
	if cfg.Roles.Admin == nil {
		cfg.Roles = RoleConfig{
			Admin:     []codec.Address{admin},
			Commit:    []codec.Address{admin},
			Apply:     []codec.Address{admin},
			Emergency: []codec.Address{guard},
			Executor:  []codec.Address{caller},
		}
	}
	evm := evmclient.NewMockClient()
	d := New(cfg, evm)
	return &harness{d: d, evm: evm, admin: admin, guard: guard, caller: caller}
}

// buildBatch constructs a merkle tree over routes and returns the
// RouteBatchItem list (with proofs) plus the root.
func buildBatch(t *testing.T, routes []merkle.Leaf) ([]RouteBatchItem, codec.Digest) {
	t.Helper()
	tree, err := merkle.Build(routes)
	if err != nil {
		t.Fatalf("merkle.Build error: %v", err)
	}
	batch := make([]RouteBatchItem, 0, len(routes))
	for _, r := range routes {
		proof, err := tree.ProofFor(r)
		if err != nil {
			t.Fatalf("ProofFor error: %v", err)
		}
		batch = append(batch, RouteBatchItem{
			Selector: r.Selector,
			Facet:    r.Facet,
			CodeHash: r.CodeHash,
			Proof:    proof,
		})
	}
	return batch, tree.Root()
}

// Scenario 1: fresh to active, single route, zero timelock.
func TestScenario1_FreshToActiveSingleRoute(t *testing.T) {
	h := newHarness(t, Config{ActivationDelaySeconds: 0, EtaGraceSeconds: 0, MaxBatchSize: 50})

	sel := mkSelector(0xC4)
	facet := mkAddr(0xCE)
	h.evm.SetCode(facet, []byte{0xAA})

	routes := []merkle.Leaf{{Selector: sel, Facet: facet, CodeHash: codec.Hash([]byte{0xAA})}}
	batch, root := buildBatch(t, routes)

	if err := h.d.CommitRoot(h.admin, root, 1, 1000); err != nil {
		t.Fatalf("CommitRoot error: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch); err != nil {
		t.Fatalf("ApplyRoutes error: %v", err)
	}
	epoch, err := h.d.Activate(context.Background(), h.admin, 1000)
	if err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	if epoch != 1 {
		t.Fatalf("epoch = %d, want 1", epoch)
	}
	if h.d.ActiveRoot() != root {
		t.Fatalf("active root mismatch")
	}
	gotFacet, _, ok := h.d.RouteOf(sel)
	if !ok || gotFacet != facet {
		t.Fatalf("RouteOf = %v, %v, want %v, true", gotFacet, ok, facet)
	}
}

// Scenario 2: timelock enforcement.
func TestScenario2_TimelockEnforcement(t *testing.T) {
	h := newHarness(t, Config{ActivationDelaySeconds: 3600, EtaGraceSeconds: 0, MaxBatchSize: 50})

	sel := mkSelector(0x01)
	facet := mkAddr(0x10)
	h.evm.SetCode(facet, []byte{0x01})
	routes := []merkle.Leaf{{Selector: sel, Facet: facet, CodeHash: codec.Hash([]byte{0x01})}}
	batch, root := buildBatch(t, routes)

	if err := h.d.CommitRoot(h.admin, root, 1, 1000); err != nil {
		t.Fatalf("CommitRoot error: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch); err != nil {
		t.Fatalf("ApplyRoutes error: %v", err)
	}

	if _, err := h.d.Activate(context.Background(), h.admin, 1000+3599); !errors.Is(err, ErrActivationNotReady) {
		t.Fatalf("Activate before timelock: err = %v, want ErrActivationNotReady", err)
	}
	if _, err := h.d.Activate(context.Background(), h.admin, 1000+3600); err != nil {
		t.Fatalf("Activate at timelock boundary: %v", err)
	}
}

// Scenario 3: replay immunity.
func TestScenario3_Replay(t *testing.T) {
	h := newHarness(t, Config{ActivationDelaySeconds: 0, EtaGraceSeconds: 0, MaxBatchSize: 50})

	sel := mkSelector(0x01)
	facet := mkAddr(0x10)
	h.evm.SetCode(facet, []byte{0x01})
	routes := []merkle.Leaf{{Selector: sel, Facet: facet, CodeHash: codec.Hash([]byte{0x01})}}
	batch, root := buildBatch(t, routes)

	if err := h.d.CommitRoot(h.admin, root, 1, 1000); err != nil {
		t.Fatalf("CommitRoot error: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch); err != nil {
		t.Fatalf("ApplyRoutes error: %v", err)
	}
	if _, err := h.d.Activate(context.Background(), h.admin, 1000); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	if err := h.d.CommitRoot(h.admin, root, 2, 2000); !errors.Is(err, ErrRootConsumed) {
		t.Fatalf("CommitRoot of consumed root: err = %v, want ErrRootConsumed", err)
	}
}

// Scenario 4 / Property H: code-hash drift between apply and activate.
func TestScenario4_CodehashDrift(t *testing.T) {
	h := newHarness(t, Config{ActivationDelaySeconds: 0, EtaGraceSeconds: 0, MaxBatchSize: 50})

	sel := mkSelector(0x01)
	facet := mkAddr(0x10)
	original := []byte{0x01}
	h.evm.SetCode(facet, original)
	routes := []merkle.Leaf{{Selector: sel, Facet: facet, CodeHash: codec.Hash(original)}}
	batch, root := buildBatch(t, routes)

	if err := h.d.CommitRoot(h.admin, root, 1, 1000); err != nil {
		t.Fatalf("CommitRoot error: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch); err != nil {
		t.Fatalf("ApplyRoutes error: %v", err)
	}

	h.evm.SetCode(facet, []byte{0x02})
	var mismatch *CodehashMismatchError
	if _, err := h.d.Activate(context.Background(), h.admin, 1000); !errorsAs(err, &mismatch) {
		t.Fatalf("Activate with drifted code: err = %v, want *CodehashMismatchError", err)
	}
	if h.d.ActiveRoot() != (codec.Digest{}) {
		t.Fatalf("active root changed despite mismatch")
	}

	h.evm.SetCode(facet, original)
	if _, err := h.d.Activate(context.Background(), h.admin, 1000); err != nil {
		t.Fatalf("Activate after restoring code: %v", err)
	}
}

func errorsAs(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Scenario 5: batch atomicity under a corrupted proof.
func TestScenario5_BatchAtomicity(t *testing.T) {
	h := newHarness(t, Config{ActivationDelaySeconds: 0, EtaGraceSeconds: 0, MaxBatchSize: 50})

	routes := []merkle.Leaf{
		{Selector: mkSelector(0x01), Facet: mkAddr(0x10), CodeHash: mkDigest(0x01)},
		{Selector: mkSelector(0x02), Facet: mkAddr(0x20), CodeHash: mkDigest(0x02)},
		{Selector: mkSelector(0x03), Facet: mkAddr(0x30), CodeHash: mkDigest(0x03)},
	}
	batch, root := buildBatch(t, routes)
	// Corrupt the second item's proof.
	batch[1].Proof.Siblings[0][0] ^= 0xFF

	if err := h.d.CommitRoot(h.admin, root, 1, 1000); err != nil {
		t.Fatalf("CommitRoot error: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("ApplyRoutes with corrupted proof: err = %v, want ErrInvalidProof", err)
	}

	for _, r := range routes {
		if _, _, ok := h.d.RouteOf(r.Selector); ok {
			t.Fatalf("selector %s was routed despite rejected batch", r.Selector)
		}
	}
	if len(h.d.FacetAddresses()) != 0 {
		t.Fatalf("facet list non-empty despite rejected batch")
	}
}

// Scenario 6 / Property E: re-routing cleans the reverse index.
func TestScenario6_RerouteCleansReverseIndex(t *testing.T) {
	h := newHarness(t, Config{ActivationDelaySeconds: 0, EtaGraceSeconds: 0, MaxBatchSize: 50})

	sel := mkSelector(0x11)
	f1 := mkAddr(0xF1)
	f2 := mkAddr(0xF2)

	h.evm.SetCode(f1, []byte{0x01})
	routes1 := []merkle.Leaf{{Selector: sel, Facet: f1, CodeHash: codec.Hash([]byte{0x01})}}
	batch1, root1 := buildBatch(t, routes1)
	if err := h.d.CommitRoot(h.admin, root1, 1, 1000); err != nil {
		t.Fatalf("CommitRoot error: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch1); err != nil {
		t.Fatalf("ApplyRoutes error: %v", err)
	}
	if _, err := h.d.Activate(context.Background(), h.admin, 1000); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	h.evm.SetCode(f2, []byte{0x02})
	routes2 := []merkle.Leaf{{Selector: sel, Facet: f2, CodeHash: codec.Hash([]byte{0x02})}}
	batch2, root2 := buildBatch(t, routes2)
	if err := h.d.CommitRoot(h.admin, root2, 2, 2000); err != nil {
		t.Fatalf("CommitRoot error: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch2); err != nil {
		t.Fatalf("ApplyRoutes error: %v", err)
	}
	if _, err := h.d.Activate(context.Background(), h.admin, 2000); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	if sels := h.d.FacetFunctionSelectors(f1); len(sels) != 0 {
		t.Fatalf("facet_selectors[F1] = %v, want empty", sels)
	}
	for _, f := range h.d.FacetAddresses() {
		if f == f1 {
			t.Fatalf("F1 still in facet_list")
		}
	}
	sels := h.d.FacetFunctionSelectors(f2)
	if len(sels) != 1 || sels[0] != sel {
		t.Fatalf("facet_selectors[F2] = %v, want [%s]", sels, sel)
	}
}

// Property F: epoch monotonicity.
func TestPropertyF_EpochMonotonicity(t *testing.T) {
	h := newHarness(t, Config{ActivationDelaySeconds: 0, EtaGraceSeconds: 0, MaxBatchSize: 50})

	if err := h.d.CommitRoot(h.admin, mkDigest(0x01), 1, 1000); err != nil {
		t.Fatalf("CommitRoot error: %v", err)
	}
	if err := h.d.CommitRoot(h.admin, mkDigest(0x01), 0, 1000); !errors.Is(err, ErrEpochNotStrictlyIncreasing) {
		t.Fatalf("CommitRoot with epoch 0: err = %v", err)
	}
}

// Property G: replay immunity is covered by TestScenario3_Replay.

func TestCommitRoot_RequiresCommitRole(t *testing.T) {
	h := newHarness(t, Config{})
	intruder := mkAddr(0xFF)
	if err := h.d.CommitRoot(intruder, mkDigest(0x01), 1, 1000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("CommitRoot by unauthorized caller: err = %v, want ErrUnauthorized", err)
	}
}

func TestDispatch_UnknownSelectorFailsClosed(t *testing.T) {
	h := newHarness(t, Config{})
	_, _, err := h.d.Dispatch(context.Background(), h.caller, mkSelector(0x99), nil)
	if !errors.Is(err, ErrUnknownSelector) {
		t.Fatalf("Dispatch of unrouted selector: err = %v, want ErrUnknownSelector", err)
	}
}

func TestDispatch_PausedRejectsButGovernanceStillWorks(t *testing.T) {
	h := newHarness(t, Config{})
	if err := h.d.Pause(h.guard); err != nil {
		t.Fatalf("Pause error: %v", err)
	}
	if _, _, err := h.d.Dispatch(context.Background(), h.caller, mkSelector(0x01), nil); !errors.Is(err, ErrPaused) {
		t.Fatalf("Dispatch while paused: err = %v, want ErrPaused", err)
	}
	// commit_root is explicitly permitted while paused.
	if err := h.d.CommitRoot(h.admin, mkDigest(0x05), 1, 1000); err != nil {
		t.Fatalf("CommitRoot while paused: %v", err)
	}
}

func TestFreeze_BlocksEverySubsequentMutation(t *testing.T) {
	h := newHarness(t, Config{})
	if err := h.d.Freeze(h.admin); err != nil {
		t.Fatalf("Freeze error: %v", err)
	}
	if err := h.d.CommitRoot(h.admin, mkDigest(0x01), 1, 1000); !errors.Is(err, ErrFrozen) {
		t.Fatalf("CommitRoot after freeze: err = %v, want ErrFrozen", err)
	}
	if err := h.d.Pause(h.guard); !errors.Is(err, ErrFrozen) {
		t.Fatalf("Pause after freeze: err = %v, want ErrFrozen", err)
	}
	if err := h.d.Freeze(h.admin); !errors.Is(err, ErrFrozen) {
		t.Fatalf("double Freeze: err = %v, want ErrFrozen", err)
	}
}

func TestApplyRoutes_BatchTooLarge(t *testing.T) {
	h := newHarness(t, Config{MaxBatchSize: 1})
	routes := []merkle.Leaf{
		{Selector: mkSelector(0x01), Facet: mkAddr(0x10), CodeHash: mkDigest(0x01)},
		{Selector: mkSelector(0x02), Facet: mkAddr(0x20), CodeHash: mkDigest(0x02)},
	}
	batch, root := buildBatch(t, routes)
	if err := h.d.CommitRoot(h.admin, root, 1, 1000); err != nil {
		t.Fatalf("CommitRoot error: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("ApplyRoutes over max batch: err = %v, want ErrBatchTooLarge", err)
	}
}

func TestGrantRevokeRole(t *testing.T) {
	h := newHarness(t, Config{})
	intruder := mkAddr(0xEE)
	if err := h.d.GrantRole(h.admin, RoleCommit, intruder); err != nil {
		t.Fatalf("GrantRole error: %v", err)
	}
	if err := h.d.CommitRoot(intruder, mkDigest(0x01), 1, 1000); err != nil {
		t.Fatalf("CommitRoot by newly-granted role: %v", err)
	}
	if err := h.d.RevokeRole(h.admin, RoleCommit, intruder); err != nil {
		t.Fatalf("RevokeRole error: %v", err)
	}
	if err := h.d.CommitRoot(intruder, mkDigest(0x02), 2, 1000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("CommitRoot after revoke: err = %v, want ErrUnauthorized", err)
	}
}
