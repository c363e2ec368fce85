package dispatcher

import "github.com/routeforge/dispatch-core/codec"

// Facet pairs an address with the selectors it currently serves, the
// composed view Facets returns.
type Facet struct {
	Address   codec.Address
	Selectors []codec.Selector
}

// FacetAddresses returns a snapshot of every facet with at least one
// routed selector, in the dispatcher's stable (swap-and-pop) order.
func (d *Dispatcher) FacetAddresses() []codec.Address {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.st.facets.snapshot()
}

// FacetFunctionSelectors returns a snapshot of the selectors currently
// routed to facet.
func (d *Dispatcher) FacetFunctionSelectors(facet codec.Address) []codec.Selector {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.st.facetSelectors[facet]
	if !ok {
		return nil
	}
	return idx.snapshot()
}

// Facets returns the composed facet/selectors view across every
// routed facet.
func (d *Dispatcher) Facets() []Facet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	facets := d.st.facets.snapshot()
	out := make([]Facet, 0, len(facets))
	for _, f := range facets {
		idx := d.st.facetSelectors[f]
		out = append(out, Facet{Address: f, Selectors: idx.snapshot()})
	}
	return out
}

// FacetAddress returns the facet currently routed for selector, or the
// zero address if unrouted.
func (d *Dispatcher) FacetAddress(selector codec.Selector) codec.Address {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.st.routes[selector].facet
}
