package dispatcher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/routeforge/dispatch-core/codec"
	"github.com/routeforge/dispatch-core/merkle"
)

// TestSnapshot_ActivationSelectorsSurviveRoundTrip exercises the path
// ApplyRoutes -> MarshalSnapshot -> LoadSnapshot (into a fresh
// Dispatcher) -> Activate. It asserts activation_selectors persists as
// the selectors touched by the most recent ApplyRoutes batch, not the
// entire forward route table: a long-settled, already-active facet
// whose on-chain code later drifts must not spuriously fail the next
// Activate.
func TestSnapshot_ActivationSelectorsSurviveRoundTrip(t *testing.T) {
	cfg := Config{ActivationDelaySeconds: 3600, EtaGraceSeconds: 0, MaxBatchSize: 50}
	h := newHarness(t, cfg)

	selA := mkSelector(0x01)
	facetA := mkAddr(0x10)
	codeA := []byte{0xAA}
	h.evm.SetCode(facetA, codeA)

	routesA := []merkle.Leaf{{Selector: selA, Facet: facetA, CodeHash: codec.Hash(codeA)}}
	batchA, rootA := buildBatch(t, routesA)
	if err := h.d.CommitRoot(h.admin, rootA, 1, 1000); err != nil {
		t.Fatalf("CommitRoot epoch 1: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batchA); err != nil {
		t.Fatalf("ApplyRoutes epoch 1: %v", err)
	}
	if _, err := h.d.Activate(context.Background(), h.admin, 1000+3600); err != nil {
		t.Fatalf("Activate epoch 1: %v", err)
	}

	// Epoch 2 touches only selB. selA is untouched and stays in the
	// route table (it is still actively routed), but must not re-enter
	// activation_selectors.
	selB := mkSelector(0x02)
	facetB := mkAddr(0x20)
	codeB := []byte{0xBB}
	h.evm.SetCode(facetB, codeB)

	routesB := []merkle.Leaf{{Selector: selB, Facet: facetB, CodeHash: codec.Hash(codeB)}}
	batchB, rootB := buildBatch(t, routesB)
	if err := h.d.CommitRoot(h.admin, rootB, 2, 5000); err != nil {
		t.Fatalf("CommitRoot epoch 2: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batchB); err != nil {
		t.Fatalf("ApplyRoutes epoch 2: %v", err)
	}

	data, err := h.d.MarshalSnapshot()
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.ActivationSelectors) != 1 || snap.ActivationSelectors[0] != selB.String() {
		t.Fatalf("snapshot activation_selectors = %v, want [%s]", snap.ActivationSelectors, selB)
	}

	// facetA's on-chain code drifts after the snapshot was taken but
	// before the restarted process activates epoch 2. Since facetA was
	// not touched by the pending batch, this must not block activation.
	h.evm.SetCode(facetA, []byte{0xFF})

	restored := New(cfg, h.evm)
	if err := restored.LoadSnapshot(data); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	epoch, err := restored.Activate(context.Background(), h.admin, 5000+3600)
	if err != nil {
		t.Fatalf("Activate after restore: %v, want success despite facetA drift", err)
	}
	if epoch != 2 {
		t.Fatalf("epoch = %d, want 2", epoch)
	}
	if restored.ActiveRoot() != rootB {
		t.Fatalf("active root = %v, want %v", restored.ActiveRoot(), rootB)
	}

	gotFacet, _, ok := restored.RouteOf(selA)
	if !ok || gotFacet != facetA {
		t.Fatalf("RouteOf(selA) = %v, %v, want %v, true", gotFacet, ok, facetA)
	}
}

// TestSnapshot_ZeroFacetRoutesDoNotReenterReverseIndex guards against a
// related defect: a selector re-routed to the zero address (removed)
// stays in the snapshot's route list so its history is inspectable,
// but LoadSnapshot must not wire the zero address into facet_selectors
// or facet_list as if it were a real facet.
func TestSnapshot_ZeroFacetRoutesDoNotReenterReverseIndex(t *testing.T) {
	cfg := Config{ActivationDelaySeconds: 0, EtaGraceSeconds: 0, MaxBatchSize: 50}
	h := newHarness(t, cfg)

	sel := mkSelector(0x01)
	facet := mkAddr(0x10)
	code := []byte{0xAA}
	h.evm.SetCode(facet, code)

	routes := []merkle.Leaf{{Selector: sel, Facet: facet, CodeHash: codec.Hash(code)}}
	batch, root := buildBatch(t, routes)
	if err := h.d.CommitRoot(h.admin, root, 1, 1000); err != nil {
		t.Fatalf("CommitRoot: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch); err != nil {
		t.Fatalf("ApplyRoutes: %v", err)
	}
	if _, err := h.d.Activate(context.Background(), h.admin, 1000); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	// Remove the route by pointing it at the zero address.
	removed := []merkle.Leaf{{Selector: sel, Facet: codec.Address{}, CodeHash: codec.Digest{}}}
	batch2, root2 := buildBatch(t, removed)
	if err := h.d.CommitRoot(h.admin, root2, 2, 2000); err != nil {
		t.Fatalf("CommitRoot: %v", err)
	}
	if _, err := h.d.ApplyRoutes(h.admin, batch2); err != nil {
		t.Fatalf("ApplyRoutes: %v", err)
	}
	if _, err := h.d.Activate(context.Background(), h.admin, 2000); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	data, err := h.d.MarshalSnapshot()
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}

	restored := New(cfg, h.evm)
	if err := restored.LoadSnapshot(data); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if got := restored.FacetAddress(sel); !got.IsZero() {
		t.Fatalf("FacetAddress(sel) = %v, want zero address", got)
	}
	for _, f := range restored.FacetAddresses() {
		if f.IsZero() {
			t.Fatalf("facet_list contains the zero address")
		}
	}
	if sels := restored.FacetFunctionSelectors(codec.Address{}); len(sels) != 0 {
		t.Fatalf("facet_selectors[zero] = %v, want empty", sels)
	}
}
