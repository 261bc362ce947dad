// Package topology implements the peer ordering that assigns consensus
// roles each round. Role is a pure function of position in an ordered
// peer list; rotation/lifting/peer-set updates are the only ways the
// order changes (see spec.md §4.1).
package topology

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/sumeragi/peer"
)

// Role is a peer's position-derived responsibility for the current round.
type Role int

const (
	RoleLeader Role = iota
	RoleValidatingPeer
	RoleProxyTail
	RoleObservingPeer
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "Leader"
	case RoleValidatingPeer:
		return "ValidatingPeer"
	case RoleProxyTail:
		return "ProxyTail"
	case RoleObservingPeer:
		return "ObservingPeer"
	default:
		return "Unknown"
	}
}

// Topology is the ordered peer sequence that defines roles for a round.
// It is a value type: every mutating method returns a new Topology rather
// than mutating in place, so callers can hold onto a prior round's
// topology (e.g. while reconciling a soft fork) without it moving under
// them.
type Topology struct {
	sortedPeers []peer.ID
}

// New builds a Topology from the given peer order. The order is taken
// as-is; callers choose the initial order (typically sorted by the
// genesis peer-set configuration).
func New(peers []peer.ID) Topology {
	return Topology{sortedPeers: append([]peer.ID(nil), peers...)}
}

// Peers returns the current ordered peer list.
func (t Topology) Peers() []peer.ID {
	return append([]peer.ID(nil), t.sortedPeers...)
}

// Len is the number of peers in the topology.
func (t Topology) Len() int {
	return len(t.sortedPeers)
}

// IsConsensusRequired reports whether a commit needs more than the
// leader's own signature (MinVotesForCommit() > 1, i.e. n >= 4).
func (t Topology) IsConsensusRequired() bool {
	return t.MinVotesForCommit() > 1
}

// MaxFaults is f, the maximum number of simultaneously faulty peers this
// topology can tolerate: f = (n-1)/3.
func (t Topology) MaxFaults() int {
	n := len(t.sortedPeers)
	if n == 0 {
		return 0
	}
	return (n - 1) / 3
}

// MinVotesForCommit is 2f+1, the number of signatures (including the
// leader's) required to commit a block.
func (t Topology) MinVotesForCommit() int {
	return t.MaxFaults()*2 + 1
}

// Role reports the given peer's role this round. A peer absent from the
// topology is treated as an ObservingPeer.
func (t Topology) Role(p peer.ID) Role {
	index := -1
	for i, sp := range t.sortedPeers {
		if sp.Equal(p) {
			index = i
			break
		}
	}
	if index < 0 {
		return RoleObservingPeer
	}
	if index == 0 {
		return RoleLeader
	}

	if t.MaxFaults() == 0 {
		// Degenerate small-n policy (spec.md §4.1): below the f=1
		// threshold the general range formula below breaks down, so
		// roles are assigned case by case instead, matching
		// roleNodeIDs's f==0 branches exactly.
		switch n := len(t.sortedPeers); {
		case n == 2:
			return RoleProxyTail
		case n == 3:
			if index == 1 {
				return RoleValidatingPeer
			}
			return RoleProxyTail
		case n == 4:
			switch index {
			case 1:
				return RoleValidatingPeer
			case 2:
				return RoleProxyTail
			default:
				return RoleObservingPeer
			}
		default:
			return RoleObservingPeer
		}
	}

	switch minVotes := t.MinVotesForCommit(); {
	case index < minVotes-1:
		return RoleValidatingPeer
	case index == minVotes-1:
		return RoleProxyTail
	default:
		return RoleObservingPeer
	}
}

// Leader returns the round's leader, the peer at position 0.
// Panics if the topology is empty; callers never hold an empty topology
// past genesis construction.
func (t Topology) Leader() peer.ID {
	return t.sortedPeers[0]
}

// ProxyTail returns the round's proxy tail, the peer at position
// MinVotesForCommit()-1 (2f). At f=0 it is the last peer of a two- or
// three-peer topology; a single-peer topology returns its only peer.
func (t Topology) ProxyTail() peer.ID {
	index := t.MinVotesForCommit() - 1
	if t.MaxFaults() == 0 {
		index = len(t.sortedPeers) - 1
	}
	return t.sortedPeers[index]
}

// FilterByRoles returns, from ids, only those belonging to peers holding
// one of the given roles this round. It mirrors the degenerate small-n
// branches of the source exactly: at f=0 (n in {1,2,3}) the "A set"
// collapses and ValidatingPeer/ProxyTail/ObservingPeer each resolve to at
// most a single, conditionally-present peer rather than a slice range.
func (t Topology) FilterByRoles(roles []Role, ids []ids.NodeID) []ids.NodeID {
	allowed := make(map[ids.NodeID]struct{})
	for _, role := range roles {
		for _, n := range t.roleNodeIDs(role) {
			allowed[n] = struct{}{}
		}
	}
	out := make([]ids.NodeID, 0, len(ids))
	for _, id := range ids {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (t Topology) roleNodeIDs(role Role) []ids.NodeID {
	n := len(t.sortedPeers)
	f := t.MaxFaults()
	minVotes := t.MinVotesForCommit()

	nodeIDAt := func(i int) ids.NodeID { return t.sortedPeers[i].NodeID() }

	switch {
	case role == RoleLeader:
		if n == 0 {
			return nil
		}
		return []ids.NodeID{nodeIDAt(0)}

	case role == RoleValidatingPeer && f == 0:
		// n==2: the second peer takes both Validating and ProxyTail
		// (spec.md §4.1's "takes both roles when queried by kind").
		if n >= 2 {
			return []ids.NodeID{nodeIDAt(1)}
		}
		return nil

	case role == RoleProxyTail && f == 0:
		switch {
		case n == 2:
			return []ids.NodeID{nodeIDAt(1)}
		case n > 2:
			return []ids.NodeID{nodeIDAt(2)}
		default:
			return nil
		}

	case role == RoleObservingPeer && f == 0:
		if n == 4 {
			return []ids.NodeID{nodeIDAt(3)}
		}
		return nil

	case role == RoleValidatingPeer:
		out := make([]ids.NodeID, 0, minVotes-2)
		for i := 1; i < minVotes-1; i++ {
			out = append(out, nodeIDAt(i))
		}
		return out

	case role == RoleProxyTail:
		return []ids.NodeID{nodeIDAt(minVotes - 1)}

	case role == RoleObservingPeer:
		out := make([]ids.NodeID, 0, n-minVotes)
		for i := minVotes; i < n; i++ {
			out = append(out, nodeIDAt(i))
		}
		return out

	default:
		return nil
	}
}

// UpdatePeerList adds or removes peers to match newPeers: existing
// members are kept in their current relative order (retained), removed
// members drop out, and brand-new members are appended in the order
// newPeers enumerates them (set iteration order, matching the source's
// HashSet::extend after HashSet::remove draining).
func (t Topology) UpdatePeerList(newPeers []peer.ID) Topology {
	remaining := make(map[ids.NodeID]peer.ID, len(newPeers))
	order := make([]ids.NodeID, 0, len(newPeers))
	for _, p := range newPeers {
		n := p.NodeID()
		if _, ok := remaining[n]; !ok {
			order = append(order, n)
		}
		remaining[n] = p
	}

	kept := make([]peer.ID, 0, len(t.sortedPeers))
	for _, p := range t.sortedPeers {
		n := p.NodeID()
		if _, ok := remaining[n]; ok {
			kept = append(kept, p)
			delete(remaining, n)
		}
	}
	for _, n := range order {
		if p, ok := remaining[n]; ok {
			kept = append(kept, p)
		}
	}
	return Topology{sortedPeers: kept}
}

// RotateAll cyclically shifts the whole order left by one, demoting the
// leader to the back. Used on view-change (a failed attempt to produce a
// block).
func (t Topology) RotateAll() Topology {
	return Topology{sortedPeers: rotateLeft(t.sortedPeers, 1)}
}

// RotateSetA cyclically shifts only the leading min(MinVotesForCommit, n)
// peers ("A set") left by one. Used after a successful commit so a new
// leader is chosen without disturbing the observing-peer tail.
func (t Topology) RotateSetA() Topology {
	rotateAt := t.MinVotesForCommit()
	if n := len(t.sortedPeers); rotateAt > n {
		rotateAt = n
	}
	out := append([]peer.ID(nil), t.sortedPeers...)
	copy(out[:rotateAt], rotateLeft(out[:rotateAt], 1))
	return Topology{sortedPeers: out}
}

// LiftUpPeers moves the peers named in toLiftUp to the front, preserving
// their relative order among themselves and the relative order of
// everyone else behind them (a stable partition, not a full sort). Used
// during block-sync catch-up to promote peers that proved themselves
// caught-up/responsive.
func (t Topology) LiftUpPeers(toLiftUp []peer.ID) Topology {
	lift := make(map[ids.NodeID]struct{}, len(toLiftUp))
	for _, p := range toLiftUp {
		lift[p.NodeID()] = struct{}{}
	}

	out := make([]peer.ID, 0, len(t.sortedPeers))
	var rest []peer.ID
	for _, p := range t.sortedPeers {
		if _, ok := lift[p.NodeID()]; ok {
			out = append(out, p)
		} else {
			rest = append(rest, p)
		}
	}
	out = append(out, rest...)
	return Topology{sortedPeers: out}
}

// rotateLeft returns a new slice with s shifted left by k positions
// (k is taken mod len(s)); s itself is not modified.
func rotateLeft(s []peer.ID, k int) []peer.ID {
	n := len(s)
	if n == 0 {
		return nil
	}
	k %= n
	out := make([]peer.ID, n)
	copy(out, s[k:])
	copy(out[n-k:], s[:k])
	return out
}
