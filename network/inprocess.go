package network

import (
	"context"
	"sync"

	"github.com/luxfi/ids"
)

// InProcessTransport wires a fixed set of Adapters together in-memory,
// delivering frames synchronously — used by tests and as a reference
// for a real socket-backed Transport.
type InProcessTransport struct {
	mu       sync.RWMutex
	adapters map[ids.NodeID]*Adapter
}

// NewInProcessTransport returns an empty transport; call Register for
// each participating adapter.
func NewInProcessTransport() *InProcessTransport {
	return &InProcessTransport{adapters: make(map[ids.NodeID]*Adapter)}
}

// Register associates an Adapter's NodeID with itself so other
// adapters on this transport can reach it.
func (t *InProcessTransport) Register(id ids.NodeID, a *Adapter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.adapters[id] = a
}

// SendFrom delivers frame from `from` to the adapter registered for
// `to`.
func (t *InProcessTransport) SendFrom(ctx context.Context, from, to ids.NodeID, frame []byte) error {
	t.mu.RLock()
	target, ok := t.adapters[to]
	t.mu.RUnlock()
	if !ok {
		return nil // peer not reachable; swallowed like a real network error
	}
	return target.Deliver(ctx, from, frame)
}

// boundTransport adapts a shared InProcessTransport + a fixed sender
// identity into the Transport interface Adapter.send expects.
type boundTransport struct {
	shared *InProcessTransport
	self   ids.NodeID
}

// NewBoundTransport returns a Transport view of shared that always
// attributes outgoing frames to self.
func NewBoundTransport(shared *InProcessTransport, self ids.NodeID) Transport {
	return &boundTransport{shared: shared, self: self}
}

func (b *boundTransport) Send(ctx context.Context, to ids.NodeID, frame []byte) error {
	return b.shared.SendFrom(ctx, b.self, to, frame)
}
