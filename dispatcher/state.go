package dispatcher

import (
	"github.com/routeforge/dispatch-core/codec"
)

// routeEntry is the dispatcher's own record of a routed selector: the
// {facet, code_hash} pair kept in the forward index.
type routeEntry struct {
	facet    codec.Address
	codeHash codec.Digest
}

// facetIndex is the reverse facet -> selectors index, maintained with
// swap-and-pop removal so neither membership test nor deletion needs a
// linear scan over the selector set.
type facetIndex struct {
	selectors []codec.Selector
	pos       map[codec.Selector]int
}

func newFacetIndex() *facetIndex {
	return &facetIndex{pos: make(map[codec.Selector]int)}
}

func (f *facetIndex) add(s codec.Selector) {
	if _, ok := f.pos[s]; ok {
		return
	}
	f.pos[s] = len(f.selectors)
	f.selectors = append(f.selectors, s)
}

// remove deletes s via swap-and-pop: move the last element into s's
// slot, shrink the slice, then fix up the moved element's recorded
// position. Reports whether the index is now empty.
func (f *facetIndex) remove(s codec.Selector) (empty bool) {
	i, ok := f.pos[s]
	if !ok {
		return len(f.selectors) == 0
	}
	last := len(f.selectors) - 1
	f.selectors[i] = f.selectors[last]
	f.pos[f.selectors[i]] = i
	f.selectors = f.selectors[:last]
	delete(f.pos, s)
	return len(f.selectors) == 0
}

func (f *facetIndex) has(s codec.Selector) bool {
	_, ok := f.pos[s]
	return ok
}

func (f *facetIndex) snapshot() []codec.Selector {
	out := make([]codec.Selector, len(f.selectors))
	copy(out, f.selectors)
	return out
}

func (f *facetIndex) len() int {
	return len(f.selectors)
}

// facetList is the ordered set of facets with >=1 routed selector,
// also maintained with swap-and-pop so transitions to/from zero
// selectors are O(1).
type facetList struct {
	facets []codec.Address
	pos    map[codec.Address]int
}

func newFacetList() *facetList {
	return &facetList{pos: make(map[codec.Address]int)}
}

func (l *facetList) add(a codec.Address) {
	if _, ok := l.pos[a]; ok {
		return
	}
	l.pos[a] = len(l.facets)
	l.facets = append(l.facets, a)
}

func (l *facetList) remove(a codec.Address) {
	i, ok := l.pos[a]
	if !ok {
		return
	}
	last := len(l.facets) - 1
	l.facets[i] = l.facets[last]
	l.pos[l.facets[i]] = i
	l.facets = l.facets[:last]
	delete(l.pos, a)
}

func (l *facetList) snapshot() []codec.Address {
	out := make([]codec.Address, len(l.facets))
	copy(out, l.facets)
	return out
}

// state is the dispatcher's authoritative, mutex-owned data. It is
// never handed out by reference; every read returns a copy or a
// freshly-built snapshot.
type state struct {
	activeRoot  codec.Digest
	activeEpoch codec.Epoch

	pendingRoot  *codec.Digest
	pendingEpoch codec.Epoch
	pendingSince codec.Timestamp

	routes         map[codec.Selector]routeEntry
	facetSelectors map[codec.Address]*facetIndex
	facets         *facetList

	activationSelectors []codec.Selector

	consumedRoots map[codec.Digest]struct{}

	paused bool
	frozen bool

	activationDelay uint64
	etaGrace        uint32
	maxBatchSize    uint32

	roles map[Role]roleSet
}

func newState(cfg Config) *state {
	return &state{
		routes:          make(map[codec.Selector]routeEntry),
		facetSelectors:  make(map[codec.Address]*facetIndex),
		facets:          newFacetList(),
		consumedRoots:   make(map[codec.Digest]struct{}),
		activationDelay: cfg.ActivationDelaySeconds,
		etaGrace:        cfg.EtaGraceSeconds,
		maxBatchSize:    cfg.MaxBatchSize,
		roles:           newRoleTable(cfg.Roles),
	}
}
