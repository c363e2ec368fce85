// Package dispatcher implements the commit/apply/activate routing
// state machine: the authoritative selector -> facet route table, its
// reverse facet -> selectors index, the role-gated governance surface,
// and the pause/freeze lifecycle.
//
// The package is grounded on the service-owns-its-state
// pattern seen in beacon-chain/p2p.Service and sharding/proposer.Proposer: a
// single struct under a mutex, a constructor seeding configuration,
// and an event.Feed used to fan events out to indexers without the
// core depending on any particular sink.
package dispatcher

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/routeforge/dispatch-core/codec"
	"github.com/routeforge/dispatch-core/evmclient"
	"github.com/routeforge/dispatch-core/merkle"
)

var log = logrus.WithField("prefix", "dispatcher")

var (
	activeEpochGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_active_epoch",
		Help: "The currently active routing epoch.",
	})
	routedSelectorsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_routed_selectors",
		Help: "The number of selectors with a non-zero facet route.",
	})
	activationsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_activations_total",
		Help: "Count of successful activate() calls.",
	})
	dispatchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_dispatch_total",
		Help: "Count of dispatch() calls by outcome.",
	}, []string{"outcome"})
)

// Dispatcher owns the routing state machine described above. All
// methods are safe for concurrent use; every mutating operation is
// totally ordered behind mu, giving a strictly serialized state
// machine.
type Dispatcher struct {
	mu   sync.RWMutex
	st   *state
	evm  evmclient.Client
	feed event.Feed
}

// New constructs a Dispatcher in the FRESH state: no active root, no
// pending root, and the role table seeded from cfg.Roles.
func New(cfg Config, evm evmclient.Client) *Dispatcher {
	return &Dispatcher{
		st:  newState(cfg),
		evm: evm,
	}
}

func (d *Dispatcher) hasRole(role Role, caller codec.Address) bool {
	set, ok := d.st.roles[role]
	if !ok {
		return false
	}
	return set.has(caller)
}

func (d *Dispatcher) requireRole(role Role, caller codec.Address) error {
	if !d.hasRole(role, caller) {
		return errors.Wrapf(ErrUnauthorized, "role %s required", role)
	}
	return nil
}

// ActiveRoot returns the currently active root (zero in FRESH state).
func (d *Dispatcher) ActiveRoot() codec.Digest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.st.activeRoot
}

// ActiveEpoch returns the currently active epoch (zero in FRESH state).
func (d *Dispatcher) ActiveEpoch() codec.Epoch {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.st.activeEpoch
}

// PendingRoot returns the committed-but-not-yet-active root, if any.
func (d *Dispatcher) PendingRoot() (codec.Digest, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.st.pendingRoot == nil {
		return codec.Digest{}, false
	}
	return *d.st.pendingRoot, true
}

// PendingSince returns the timestamp the current pending root was
// committed at.
func (d *Dispatcher) PendingSince() codec.Timestamp {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.st.pendingSince
}

// Paused reports the current pause flag.
func (d *Dispatcher) Paused() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.st.paused
}

// Frozen reports the current (terminal) freeze flag.
func (d *Dispatcher) Frozen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.st.frozen
}

// RouteOf returns the current route for selector, or false if
// unrouted.
func (d *Dispatcher) RouteOf(selector codec.Selector) (facet codec.Address, codeHash codec.Digest, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.st.routes[selector]
	if !ok {
		return codec.Address{}, codec.Digest{}, false
	}
	return r.facet, r.codeHash, true
}

// CommitRoot records r as the pending root for epoch, superseding any
// existing pending root. Role: COMMIT. Permitted while paused.
func (d *Dispatcher) CommitRoot(caller codec.Address, r codec.Digest, epoch codec.Epoch, now codec.Timestamp) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st.frozen {
		return ErrFrozen
	}
	if err := d.requireRole(RoleCommit, caller); err != nil {
		return err
	}
	if r.IsZero() {
		return ErrZeroRoot
	}
	if epoch <= d.st.activeEpoch {
		return errors.Wrapf(ErrEpochNotStrictlyIncreasing, "epoch %d, active %d", epoch, d.st.activeEpoch)
	}
	if _, consumed := d.st.consumedRoots[r]; consumed {
		return errors.Wrapf(ErrRootConsumed, "root %s", r)
	}

	d.st.pendingRoot = &r
	d.st.pendingEpoch = epoch
	d.st.pendingSince = now

	log.WithFields(logrus.Fields{"root": r.String(), "epoch": epoch}).Info("Committed pending root")
	d.emit(KindCommitted, CommittedEvent{Root: r, Epoch: epoch, Eta: now})
	return nil
}

// RouteBatchItem is one entry of an apply_routes batch: a route plus
// the Merkle proof binding it to the pending root.
type RouteBatchItem struct {
	Selector codec.Selector
	Facet    codec.Address
	CodeHash codec.Digest
	Proof    merkle.Proof
}

// AppliedCount is the result of a successful ApplyRoutes call.
type AppliedCount int

// ApplyRoutes verifies each item's proof against the pending root and,
// if every proof in the batch is valid, performs the route update for
// each item. The whole batch is atomic: one invalid proof rejects all
// of it. Role: APPLY. Permitted while paused.
func (d *Dispatcher) ApplyRoutes(caller codec.Address, batch []RouteBatchItem) (AppliedCount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st.frozen {
		return 0, ErrFrozen
	}
	if err := d.requireRole(RoleApply, caller); err != nil {
		return 0, err
	}
	if d.st.pendingRoot == nil {
		return 0, ErrNoPendingRoot
	}
	if uint32(len(batch)) > d.st.maxBatchSize {
		return 0, errors.Wrapf(ErrBatchTooLarge, "%d > max %d", len(batch), d.st.maxBatchSize)
	}

	seen := make(map[codec.Selector]struct{}, len(batch))
	for _, item := range batch {
		if _, dup := seen[item.Selector]; dup {
			return 0, errors.Wrapf(ErrDuplicateSelector, "selector %s", item.Selector)
		}
		seen[item.Selector] = struct{}{}

		leafBytes := codec.EncodeLeaf(item.Selector, item.Facet, item.CodeHash)[1:]
		ok, err := merkle.Verify(leafBytes, item.Proof, *d.st.pendingRoot)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalidProof, "selector %s: %v", item.Selector, err)
		}
		if !ok {
			return 0, errors.Wrapf(ErrInvalidProof, "selector %s", item.Selector)
		}
	}

	for _, item := range batch {
		d.route(item.Selector, item.Facet, item.CodeHash)
		d.st.activationSelectors = append(d.st.activationSelectors, item.Selector)
	}

	root := *d.st.pendingRoot
	log.WithFields(logrus.Fields{"root": root.String(), "count": len(batch)}).Info("Applied route batch")
	d.emit(KindRoutesApplied, RoutesAppliedEvent{Root: root, Count: len(batch)})
	routedSelectorsGauge.Set(float64(d.countRoutedSelectors()))
	return AppliedCount(len(batch)), nil
}

// countRoutedSelectors counts routes whose facet is non-zero, i.e.
// excludes selectors that were removed (re-routed to the zero
// address) but whose stale entry is still retained in routes. Must be
// called with mu held.
func (d *Dispatcher) countRoutedSelectors() int {
	n := 0
	for _, entry := range d.st.routes {
		if !entry.facet.IsZero() {
			n++
		}
	}
	return n
}

// route performs the internal selector/facet/reverse-index update:
// reassigning a selector away from its previous facet unwinds that
// facet's reverse-index
// entry (and drops the facet from facetList if it is now unserved)
// before writing the new route and wiring the new facet's reverse
// entry. Must be called with mu held.
func (d *Dispatcher) route(selector codec.Selector, facet codec.Address, codeHash codec.Digest) {
	prevEntry, had := d.st.routes[selector]
	prev := prevEntry.facet
	if had && prev == facet {
		if prevEntry.codeHash != codeHash {
			d.st.routes[selector] = routeEntry{facet: facet, codeHash: codeHash}
		}
		return
	}

	if had && !prev.IsZero() {
		idx := d.st.facetSelectors[prev]
		if idx != nil {
			empty := idx.remove(selector)
			d.emit(KindSelectorUnrouted, SelectorUnroutedEvent{Selector: selector, Facet: prev})
			if empty {
				delete(d.st.facetSelectors, prev)
				d.st.facets.remove(prev)
			}
		}
	}

	d.st.routes[selector] = routeEntry{facet: facet, codeHash: codeHash}

	if !facet.IsZero() {
		idx, ok := d.st.facetSelectors[facet]
		if !ok {
			idx = newFacetIndex()
			d.st.facetSelectors[facet] = idx
			d.st.facets.add(facet)
		}
		idx.add(selector)
		d.emit(KindSelectorRouted, SelectorRoutedEvent{Selector: selector, Facet: facet})
	}
}

// Activate re-queries the EVM collaborator for every selector touched
// since the last activation, aborting with no state change if any
// facet's observed code hash no longer matches what apply_routes
// pinned. On success the pending root becomes active, its epoch
// becomes the active epoch, and the root is recorded as consumed so it
// may never become pending again (replay immunity). Role: APPLY.
func (d *Dispatcher) Activate(ctx context.Context, caller codec.Address, now codec.Timestamp) (codec.Epoch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.st.frozen {
		return 0, ErrFrozen
	}
	if err := d.requireRole(RoleApply, caller); err != nil {
		return 0, err
	}
	if d.st.pendingRoot == nil {
		return 0, ErrNoPendingRoot
	}
	readyAt := d.st.pendingSince + codec.Timestamp(d.st.activationDelay)
	if now+codec.Timestamp(d.st.etaGrace) < readyAt {
		return 0, errors.Wrapf(ErrActivationNotReady, "now %d, ready at %d", now, readyAt)
	}

	for _, s := range d.st.activationSelectors {
		r, ok := d.st.routes[s]
		if !ok || r.facet.IsZero() {
			continue
		}
		got, err := d.evm.CodeHash(ctx, r.facet)
		if err != nil {
			return 0, errors.Wrapf(ErrEvmClientUnavailable, "code hash for %s: %v", r.facet, err)
		}
		if got != r.codeHash {
			return 0, &CodehashMismatchError{Selector: s, Expected: r.codeHash, Got: got}
		}
	}

	root := *d.st.pendingRoot
	epoch := d.st.pendingEpoch

	d.st.activeRoot = root
	d.st.activeEpoch = epoch
	d.st.consumedRoots[root] = struct{}{}
	d.st.pendingRoot = nil
	d.st.activationSelectors = nil

	log.WithFields(logrus.Fields{"root": root.String(), "epoch": epoch}).Info("Activated root")
	d.emit(KindActivated, ActivatedEvent{Root: root, Epoch: epoch})
	activeEpochGauge.Set(float64(epoch))
	activationsCounter.Inc()
	return epoch, nil
}

// Dispatch resolves selector to its routed facet, fail-closed: an
// unrouted selector, a paused dispatcher, or a facet whose observed
// code hash no longer matches the pinned value all reject the call
// with no side effect. Role: EXECUTOR.
func (d *Dispatcher) Dispatch(ctx context.Context, caller codec.Address, selector codec.Selector, calldata []byte) (codec.Address, []byte, error) {
	d.mu.RLock()
	if d.st.frozen {
		d.mu.RUnlock()
		dispatchCounter.WithLabelValues("frozen").Inc()
		return codec.Address{}, nil, ErrFrozen
	}
	if err := d.requireRole(RoleExecutor, caller); err != nil {
		d.mu.RUnlock()
		dispatchCounter.WithLabelValues("unauthorized").Inc()
		return codec.Address{}, nil, err
	}
	if d.st.paused {
		d.mu.RUnlock()
		dispatchCounter.WithLabelValues("paused").Inc()
		return codec.Address{}, nil, ErrPaused
	}
	entry, ok := d.st.routes[selector]
	if !ok || entry.facet.IsZero() {
		d.mu.RUnlock()
		dispatchCounter.WithLabelValues("unknown_selector").Inc()
		return codec.Address{}, nil, errors.Wrapf(ErrUnknownSelector, "selector %s", selector)
	}
	facet := entry.facet
	expected := entry.codeHash
	d.mu.RUnlock()

	got, err := d.evm.CodeHash(ctx, facet)
	if err != nil {
		dispatchCounter.WithLabelValues("evm_unavailable").Inc()
		return codec.Address{}, nil, errors.Wrapf(ErrEvmClientUnavailable, "code hash for %s: %v", facet, err)
	}
	if got != expected {
		dispatchCounter.WithLabelValues("codehash_mismatch").Inc()
		return codec.Address{}, nil, &CodehashMismatchError{Selector: selector, Expected: expected, Got: got}
	}

	dispatchCounter.WithLabelValues("ok").Inc()
	return facet, calldata, nil
}
