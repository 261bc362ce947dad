// Package peergossip maintains per-peer address overrides learned from
// three sources of decreasing trust — local config, live online
// connections, gossip from other peers — and pushes the merged view to
// the network adapter (spec.md §4.7). Grounded on
// original_source/crates/iroha_core/src/peers_gossiper.rs's
// PeersGossiper actor.
package peergossip

import (
	"context"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/sumeragi/peer"
)

// Network is the subset of the §4.8 adapter the gossiper pushes
// address updates to and reads online connections from.
type Network interface {
	OnlinePeers() []peer.ID
	Broadcast(msg PeersGossip) error
	UpdatePeerAddresses(addresses map[ids.NodeID]string)
}

// PeersGossip is the wire message broadcast to advertise this node's
// view of online peer addresses.
type PeersGossip struct {
	Peers []peer.ID
}

// Gossiper tracks the three address sources and resolves conflicts by
// majority rule.
type Gossiper struct {
	network Network
	log     log.Logger

	initialPeers map[ids.NodeID]string // address source 1: startup config

	// gossipPeers[peer][advertiser] = address: source 3, keyed so a
	// conflicting peer's address can be tallied per advertiser.
	gossipPeers map[ids.NodeID]map[ids.NodeID]string

	currentTopology set.Set[ids.NodeID]

	recv         chan gossipEnvelope
	topologyCh   chan []peer.ID
	gossipPeriod time.Duration
}

type gossipEnvelope struct {
	from ids.NodeID
	msg  PeersGossip
}

// New constructs a Gossiper seeded with the initial (config-sourced)
// peer addresses.
func New(network Network, logger log.Logger, initialPeers []peer.ID, gossipPeriod time.Duration) *Gossiper {
	initial := make(map[ids.NodeID]string, len(initialPeers))
	for _, p := range initialPeers {
		initial[p.NodeID()] = p.Address
	}
	return &Gossiper{
		network:         network,
		log:             logger,
		initialPeers:    initial,
		gossipPeers:     make(map[ids.NodeID]map[ids.NodeID]string),
		currentTopology: set.Of[ids.NodeID](),
		recv:            make(chan gossipEnvelope, 8),
		topologyCh:      make(chan []peer.ID, 1),
		gossipPeriod:    gossipPeriod,
	}
}

// ReceiveGossip delivers an inbound PeersGossip message for processing
// on the gossiper's own cooperative task. from is the advertising
// peer's identity (trust gate: only accepted if from is itself in the
// current topology).
func (g *Gossiper) ReceiveGossip(ctx context.Context, from ids.NodeID, msg PeersGossip) error {
	select {
	case g.recv <- gossipEnvelope{from: from, msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetTopology updates the peer set gossip is trusted against, pruning
// any gossiped entries for peers no longer in it.
func (g *Gossiper) SetTopology(ctx context.Context, peers []peer.ID) error {
	select {
	case g.topologyCh <- peers:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the periodic broadcast and message-handling loop until
// ctx is cancelled.
func (g *Gossiper) Run(ctx context.Context) {
	ticker := time.NewTicker(g.gossipPeriod)
	defer ticker.Stop()

	g.pushAddresses()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.broadcastOnlinePeers()
		case peers := <-g.topologyCh:
			g.setCurrentTopology(peers)
		case env := <-g.recv:
			g.handleGossip(env.from, env.msg)
		}
	}
}

func (g *Gossiper) setCurrentTopology(peers []peer.ID) {
	next := set.Of[ids.NodeID]()
	for _, p := range peers {
		next.Add(p.NodeID())
	}

	for advertised, byAdvertiser := range g.gossipPeers {
		if !next.Contains(advertised) {
			delete(g.gossipPeers, advertised)
			continue
		}
		for advertiser := range byAdvertiser {
			if !next.Contains(advertiser) {
				delete(byAdvertiser, advertiser)
			}
		}
		if len(byAdvertiser) == 0 {
			delete(g.gossipPeers, advertised)
		}
	}
	g.currentTopology = next
	g.pushAddresses()
}

func (g *Gossiper) broadcastOnlinePeers() {
	if err := g.network.Broadcast(PeersGossip{Peers: g.network.OnlinePeers()}); err != nil {
		g.log.Debug("peer-gossip: broadcast failed", "err", err)
	}
}

// handleGossip accepts gossiped addresses only if both the advertiser
// and the advertised peer are in the current topology (spec.md §4.7).
func (g *Gossiper) handleGossip(from ids.NodeID, msg PeersGossip) {
	if !g.currentTopology.Contains(from) {
		return
	}
	for _, p := range msg.Peers {
		id := p.NodeID()
		if !g.currentTopology.Contains(id) {
			continue
		}
		byAdvertiser, ok := g.gossipPeers[id]
		if !ok {
			byAdvertiser = make(map[ids.NodeID]string)
			g.gossipPeers[id] = byAdvertiser
		}
		byAdvertiser[from] = p.Address
	}
	g.pushAddresses()
}

// pushAddresses recomputes the merged address view and sends it to the
// network adapter: initial config addresses for peers not currently
// connected, gossiped addresses resolved by majority rule (spec.md §4.7)
// only for peers with no config address, and online connections taking
// precedence over both (the network adapter's own connection already
// has the true address).
func (g *Gossiper) pushAddresses() {
	online := set.Of[ids.NodeID]()
	for _, p := range g.network.OnlinePeers() {
		online.Add(p.NodeID())
	}

	addresses := make(map[ids.NodeID]string)
	for id, addr := range g.initialPeers {
		if online.Contains(id) {
			continue
		}
		addresses[id] = addr
	}
	for id, byAdvertiser := range g.gossipPeers {
		if online.Contains(id) {
			continue
		}
		if _, configured := g.initialPeers[id]; configured {
			continue
		}
		addresses[id] = chooseAddressMajorityRule(byAdvertiser)
	}
	g.network.UpdatePeerAddresses(addresses)
}

// chooseAddressMajorityRule picks the address with the most
// advertisers; ties are broken deterministically by address ordering
// (spec.md §4.7).
func chooseAddressMajorityRule(byAdvertiser map[ids.NodeID]string) string {
	counts := make(map[string]int, len(byAdvertiser))
	for _, addr := range byAdvertiser {
		counts[addr]++
	}

	best := ""
	bestCount := -1
	for addr, count := range counts {
		if count > bestCount || (count == bestCount && addr < best) {
			best = addr
			bestCount = count
		}
	}
	return best
}
