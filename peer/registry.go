package peer

import "sync"

// SetCallbackListener is notified when the registered peer set changes —
// register/unregister-peer instructions committing through the State layer
// (spec.md §6 "Control plane", UpdateTopology).
type SetCallbackListener interface {
	OnPeerAdded(p ID)
	OnPeerRemoved(p ID)
}

// Registry holds the currently registered peer set, in the configuration
// order new peers were registered in. It is the collaborator Topology's
// update_peer_list consumes; Topology itself stays a pure function of the
// set handed to it (see topology.New and Topology.UpdatePeerList).
type Registry struct {
	mu        sync.RWMutex
	ordered   []ID
	listeners []SetCallbackListener
}

// NewRegistry seeds a registry from the initial trusted-peer configuration.
func NewRegistry(trusted []ID) *Registry {
	r := &Registry{ordered: append([]ID(nil), trusted...)}
	return r
}

// AddListener registers a callback invoked on subsequent set changes.
func (r *Registry) AddListener(l SetCallbackListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Peers returns a snapshot of the current registered set in registration order.
func (r *Registry) Peers() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ID(nil), r.ordered...)
}

// Register adds a newly registered peer, appended in configuration order.
// A peer already present (by NodeID) is a no-op.
func (r *Registry) Register(p ID) {
	r.mu.Lock()
	for _, existing := range r.ordered {
		if existing.Equal(p) {
			r.mu.Unlock()
			return
		}
	}
	r.ordered = append(r.ordered, p)
	listeners := append([]SetCallbackListener(nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l.OnPeerAdded(p)
	}
}

// Unregister removes a peer from the set, if present.
func (r *Registry) Unregister(p ID) {
	r.mu.Lock()
	kept := r.ordered[:0:0]
	var removed bool
	for _, existing := range r.ordered {
		if existing.Equal(p) {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	r.ordered = kept
	listeners := append([]SetCallbackListener(nil), r.listeners...)
	r.mu.Unlock()

	if removed {
		for _, l := range listeners {
			l.OnPeerRemoved(p)
		}
	}
}
