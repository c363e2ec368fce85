package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/routeforge/dispatch-core/codec"
)

// Snapshot is the self-describing JSON form of a Dispatcher's state,
// the same hex-string-over-raw-bytes convention manifest's descriptive
// document uses, so operators can inspect a persisted snapshot without
// tooling. It is what bridges dispatcher state across the short-lived
// CLI invocations of cmd/dispatchd: each governance subcommand loads
// the prior snapshot, applies one operation, and writes the result
// back out.
type Snapshot struct {
	ActiveRoot   string          `json:"active_root"`
	ActiveEpoch  codec.Epoch     `json:"active_epoch"`
	PendingRoot  string          `json:"pending_root,omitempty"`
	PendingEpoch codec.Epoch     `json:"pending_epoch,omitempty"`
	PendingSince codec.Timestamp `json:"pending_since,omitempty"`
	Routes       []SnapshotRoute `json:"routes"`
	Consumed     []string        `json:"consumed_roots"`

	// ActivationSelectors is the snapshot of selectors touched by
	// ApplyRoutes since the last Activate — the exact bounded set
	// Activate re-pins, not the whole forward route table.
	ActivationSelectors []string `json:"activation_selectors,omitempty"`

	Paused bool `json:"paused"`
	Frozen bool `json:"frozen"`

	ActivationDelaySeconds uint64 `json:"activation_delay_seconds"`
	EtaGraceSeconds        uint32 `json:"eta_grace_seconds"`
	MaxBatchSize           uint32 `json:"max_batch_size"`

	Roles SnapshotRoles `json:"roles"`
}

// SnapshotRoute is one forward-index entry in a Snapshot.
type SnapshotRoute struct {
	Selector string `json:"selector"`
	Facet    string `json:"facet"`
	CodeHash string `json:"code_hash"`
}

// SnapshotRoles mirrors RoleConfig with hex-string addresses.
type SnapshotRoles struct {
	Admin     []string `json:"admin"`
	Commit    []string `json:"commit"`
	Apply     []string `json:"apply"`
	Emergency []string `json:"emergency"`
	Executor  []string `json:"executor"`
}

// MarshalSnapshot renders the dispatcher's current state as JSON.
func (d *Dispatcher) MarshalSnapshot() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := Snapshot{
		ActiveRoot:             d.st.activeRoot.String(),
		ActiveEpoch:            d.st.activeEpoch,
		Paused:                 d.st.paused,
		Frozen:                 d.st.frozen,
		ActivationDelaySeconds: d.st.activationDelay,
		EtaGraceSeconds:        d.st.etaGrace,
		MaxBatchSize:           d.st.maxBatchSize,
	}
	if d.st.pendingRoot != nil {
		snap.PendingRoot = d.st.pendingRoot.String()
		snap.PendingEpoch = d.st.pendingEpoch
		snap.PendingSince = d.st.pendingSince
	}
	for selector, entry := range d.st.routes {
		snap.Routes = append(snap.Routes, SnapshotRoute{
			Selector: selector.String(),
			Facet:    entry.facet.String(),
			CodeHash: entry.codeHash.String(),
		})
	}
	for root := range d.st.consumedRoots {
		snap.Consumed = append(snap.Consumed, root.String())
	}
	for _, s := range d.st.activationSelectors {
		snap.ActivationSelectors = append(snap.ActivationSelectors, s.String())
	}
	snap.Roles = SnapshotRoles{
		Admin:     hexAddrs(d.st.roles[RoleAdmin].addrs()),
		Commit:    hexAddrs(d.st.roles[RoleCommit].addrs()),
		Apply:     hexAddrs(d.st.roles[RoleApply].addrs()),
		Emergency: hexAddrs(d.st.roles[RoleEmergency].addrs()),
		Executor:  hexAddrs(d.st.roles[RoleExecutor].addrs()),
	}
	return json.MarshalIndent(snap, "", "  ")
}

// LoadSnapshot replaces d's state wholesale with the decoded contents
// of data. Intended for process start-up only; callers must not call
// this concurrently with any other Dispatcher method.
func (d *Dispatcher) LoadSnapshot(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("dispatcher: decode snapshot: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	st := &state{
		routes:         make(map[codec.Selector]routeEntry),
		facetSelectors: make(map[codec.Address]*facetIndex),
		facets:         newFacetList(),
		consumedRoots:  make(map[codec.Digest]struct{}),

		paused:          snap.Paused,
		frozen:          snap.Frozen,
		activationDelay: snap.ActivationDelaySeconds,
		etaGrace:        snap.EtaGraceSeconds,
		maxBatchSize:    snap.MaxBatchSize,
	}

	var err error
	if st.activeRoot, err = codec.ParseDigest(snap.ActiveRoot); err != nil {
		return fmt.Errorf("dispatcher: active_root: %w", err)
	}
	st.activeEpoch = snap.ActiveEpoch

	if snap.PendingRoot != "" {
		root, err := codec.ParseDigest(snap.PendingRoot)
		if err != nil {
			return fmt.Errorf("dispatcher: pending_root: %w", err)
		}
		st.pendingRoot = &root
		st.pendingEpoch = snap.PendingEpoch
		st.pendingSince = snap.PendingSince
		for _, s := range snap.ActivationSelectors {
			selector, err := codec.ParseSelector(s)
			if err != nil {
				return fmt.Errorf("dispatcher: activation_selectors: %w", err)
			}
			st.activationSelectors = append(st.activationSelectors, selector)
		}
	}

	for _, r := range snap.Routes {
		selector, err := codec.ParseSelector(r.Selector)
		if err != nil {
			return fmt.Errorf("dispatcher: route selector: %w", err)
		}
		facet, err := codec.ParseAddress(r.Facet)
		if err != nil {
			return fmt.Errorf("dispatcher: route facet: %w", err)
		}
		codeHash, err := codec.ParseDigest(r.CodeHash)
		if err != nil {
			return fmt.Errorf("dispatcher: route code_hash: %w", err)
		}
		st.routes[selector] = routeEntry{facet: facet, codeHash: codeHash}
		if facet.IsZero() {
			continue
		}
		idx, ok := st.facetSelectors[facet]
		if !ok {
			idx = newFacetIndex()
			st.facetSelectors[facet] = idx
			st.facets.add(facet)
		}
		idx.add(selector)
	}

	for _, hexRoot := range snap.Consumed {
		root, err := codec.ParseDigest(hexRoot)
		if err != nil {
			return fmt.Errorf("dispatcher: consumed_roots: %w", err)
		}
		st.consumedRoots[root] = struct{}{}
	}

	st.roles = map[Role]roleSet{
		RoleAdmin:     addrSet(snap.Roles.Admin),
		RoleCommit:    addrSet(snap.Roles.Commit),
		RoleApply:     addrSet(snap.Roles.Apply),
		RoleEmergency: addrSet(snap.Roles.Emergency),
		RoleExecutor:  addrSet(snap.Roles.Executor),
	}

	d.st = st
	return nil
}

func hexAddrs(addrs []codec.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func addrSet(hexAddrs []string) roleSet {
	s := make(roleSet, len(hexAddrs))
	for _, h := range hexAddrs {
		a, err := codec.ParseAddress(h)
		if err != nil {
			continue
		}
		s[a] = struct{}{}
	}
	return s
}

