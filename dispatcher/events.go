package dispatcher

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/routeforge/dispatch-core/codec"
)

// Event is the common envelope for everything the dispatcher emits.
// Concrete payloads are one of the *Event types below; Kind names the
// concrete type so subscribers can switch without a type assertion
// chain for the common case of simple logging.
type Event struct {
	Kind    string
	Payload interface{}
}

// Event kinds, matching the stable names a governance indexer keys on.
const (
	KindCommitted        = "Committed"
	KindRoutesApplied    = "RoutesApplied"
	KindActivated        = "Activated"
	KindSelectorRouted   = "SelectorRouted"
	KindSelectorUnrouted = "SelectorUnrouted"
	KindPausedSet        = "PausedSet"
	KindFrozen           = "Frozen"
	KindEtaGraceSet      = "EtaGraceSet"
	KindMaxBatchSizeSet  = "MaxBatchSizeSet"
	KindRoleGranted      = "RoleGranted"
	KindRoleRevoked      = "RoleRevoked"
)

type CommittedEvent struct {
	Root  codec.Digest
	Epoch codec.Epoch
	Eta   codec.Timestamp
}

type RoutesAppliedEvent struct {
	Root  codec.Digest
	Count int
}

type ActivatedEvent struct {
	Root  codec.Digest
	Epoch codec.Epoch
}

type SelectorRoutedEvent struct {
	Selector codec.Selector
	Facet    codec.Address
}

type SelectorUnroutedEvent struct {
	Selector codec.Selector
	Facet    codec.Address
}

type PausedSetEvent struct {
	Paused bool
	By     codec.Address
}

type FrozenEvent struct {
	By codec.Address
}

type EtaGraceSetEvent struct {
	New uint32
}

type MaxBatchSizeSetEvent struct {
	New uint32
}

type RoleGrantedEvent struct {
	Role Role
	Addr codec.Address
	By   codec.Address
}

type RoleRevokedEvent struct {
	Role Role
	Addr codec.Address
	By   codec.Address
}

// Subscribe registers ch to receive every Event the dispatcher emits
// from this point forward, the same event.Feed fan-out used to hand
// collation transactions to a proposer's processing loop.
func (d *Dispatcher) Subscribe(ch chan<- Event) event.Subscription {
	return d.feed.Subscribe(ch)
}

func (d *Dispatcher) emit(kind string, payload interface{}) {
	d.feed.Send(Event{Kind: kind, Payload: payload})
}
