package manifest

import (
	"testing"

	"github.com/routeforge/dispatch-core/codec"
)

func mkRoute(sel, facet, code byte) Route {
	var s codec.Selector
	s[0] = sel
	var f codec.Address
	f[19] = facet
	var c codec.Digest
	c[0] = code
	return Route{Selector: s, Facet: f, CodeHash: c}
}

func TestBuild_RejectsEmpty(t *testing.T) {
	if _, err := Build(nil, "v1"); err != ErrEmptyManifest {
		t.Fatalf("Build(nil) error = %v, want ErrEmptyManifest", err)
	}
}

func TestBuild_RejectsDuplicateSelector(t *testing.T) {
	routes := []Route{mkRoute(1, 1, 1), mkRoute(1, 2, 2)}
	if _, err := Build(routes, "v1"); err == nil {
		t.Fatalf("expected error for duplicate selector")
	}
}

func TestBuild_RejectsZeroFacet(t *testing.T) {
	r := mkRoute(1, 0, 1)
	r.Facet = codec.Address{}
	if _, err := Build([]Route{r}, "v1"); err == nil {
		t.Fatalf("expected error for zero facet")
	}
}

func TestBuild_RejectsZeroCodeHash(t *testing.T) {
	r := mkRoute(1, 1, 0)
	r.CodeHash = codec.Digest{}
	if _, err := Build([]Route{r}, "v1"); err == nil {
		t.Fatalf("expected error for zero code hash")
	}
}

func TestBuild_ProducesVerifiableManifest(t *testing.T) {
	routes := []Route{mkRoute(1, 1, 1), mkRoute(2, 2, 2), mkRoute(3, 3, 3)}
	m, err := Build(routes, "v1")
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(m.Routes) != 3 {
		t.Fatalf("expected 3 routes, got %d", len(m.Routes))
	}
	if err := m.Verify(); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestCompactRoundTrip(t *testing.T) {
	routes := []Route{mkRoute(1, 1, 1), mkRoute(2, 2, 2), mkRoute(3, 3, 3), mkRoute(4, 4, 4)}
	m, err := Build(routes, "v1.2.3")
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	blob, err := m.MarshalCompact()
	if err != nil {
		t.Fatalf("MarshalCompact error: %v", err)
	}
	round, err := UnmarshalCompact(blob)
	if err != nil {
		t.Fatalf("UnmarshalCompact error: %v", err)
	}
	if round.Root != m.Root {
		t.Fatalf("compact round trip root mismatch: got %x want %x", round.Root, m.Root)
	}
	if round.Version != m.Version {
		t.Fatalf("compact round trip version mismatch: got %q want %q", round.Version, m.Version)
	}
	if err := round.Verify(); err != nil {
		t.Fatalf("round-tripped manifest failed verification: %v", err)
	}
}

func TestDescriptiveRoundTrip(t *testing.T) {
	routes := []Route{mkRoute(1, 1, 1), mkRoute(2, 2, 2), mkRoute(3, 3, 3), mkRoute(4, 4, 4), mkRoute(5, 5, 5)}
	m, err := Build(routes, "v1.2.3")
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	blob, err := m.MarshalDescriptive()
	if err != nil {
		t.Fatalf("MarshalDescriptive error: %v", err)
	}
	round, err := UnmarshalDescriptive(blob)
	if err != nil {
		t.Fatalf("UnmarshalDescriptive error: %v", err)
	}
	if round.Root != m.Root {
		t.Fatalf("descriptive round trip root mismatch: got %x want %x", round.Root, m.Root)
	}
	if err := round.Verify(); err != nil {
		t.Fatalf("round-tripped manifest failed verification: %v", err)
	}
}

func TestCompactAndDescriptive_NormalizeToSameRoot(t *testing.T) {
	routes := []Route{mkRoute(9, 9, 9), mkRoute(1, 1, 1), mkRoute(5, 5, 5)}
	m, err := Build(routes, "v1")
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	compactBlob, err := m.MarshalCompact()
	if err != nil {
		t.Fatalf("MarshalCompact error: %v", err)
	}
	compact, err := UnmarshalCompact(compactBlob)
	if err != nil {
		t.Fatalf("UnmarshalCompact error: %v", err)
	}

	descriptiveBlob, err := m.MarshalDescriptive()
	if err != nil {
		t.Fatalf("MarshalDescriptive error: %v", err)
	}
	descriptive, err := UnmarshalDescriptive(descriptiveBlob)
	if err != nil {
		t.Fatalf("UnmarshalDescriptive error: %v", err)
	}

	if compact.Root != descriptive.Root {
		t.Fatalf("compact and descriptive roots diverged: %x != %x", compact.Root, descriptive.Root)
	}
}
