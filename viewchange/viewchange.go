// Package viewchange implements the view-change proof chain: the
// append-only list of signed "rotate the topology" statements that
// justifies leader/proxy-tail rotation ahead of an actual block commit
// (spec.md §4.2).
package viewchange

import (
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/sumeragi/quorum"
	"github.com/luxfi/sumeragi/topology"
)

// Reason is why a view-change is being requested. LeaderUnresponsive and
// ProxyTailUnresponsive are the two timeout reasons spec.md §4.5 names
// directly; BlockUnratified and SoftFork are recovered from the source
// (original_source/core/src/sumeragi/*) and are raised by the sumeragi
// engine (a Proxy Tail's commit-time expiry, and soft-fork recovery).
type Reason int

const (
	// LeaderUnresponsive: no BlockCreated received before block_time_ms.
	LeaderUnresponsive Reason = iota
	// ProxyTailUnresponsive: no BlockCommitted received after BlockSigned
	// was sent, before commit_time_limit_ms.
	ProxyTailUnresponsive
	// BlockUnratified: a commit was attempted but quorum was not reached
	// before the commit-time expiry.
	BlockUnratified
	// SoftFork: recovery from a BlockSyncUpdate superseding the current
	// head (see the sumeragi engine's soft-fork recovery).
	SoftFork
)

func (r Reason) String() string {
	switch r {
	case LeaderUnresponsive:
		return "LeaderUnresponsive"
	case ProxyTailUnresponsive:
		return "ProxyTailUnresponsive"
	case BlockUnratified:
		return "BlockUnratified"
	case SoftFork:
		return "SoftFork"
	default:
		return "Unknown"
	}
}

// Signature is a signer's vote for a Proof: the signing peer's node ID
// and the signature bytes over (height, viewIndex, reason). Signature
// verification itself is a crypto-primitive concern (Non-goal); callers
// supply only already-verified signatures here.
type Signature struct {
	Signer ids.NodeID
	Sig    []byte
}

// Proof is a single view-change proof: "rotate the topology for round at
// Height, view VIewIndex, because Reason", with the distinct signatures
// collected so far.
type Proof struct {
	Height     uint64
	ViewIndex  int
	Reason     Reason
	Signatures []Signature
}

// IsComplete reports whether p carries min_votes_for_commit-1 distinct
// signatures from peers holding non-Leader roles under topo. The caller
// passes topo already rotated ViewIndex times since the last commit (the
// engine's current topology for Append, the per-step rotation inside
// Reconcile); IsComplete applies no further rotation.
func (p Proof) IsComplete(topo topology.Topology) bool {
	rotated := topo
	required := rotated.MinVotesForCommit() - 1
	if required < 0 {
		required = 0
	}

	nonLeader := make(map[ids.NodeID]struct{})
	for _, n := range rotated.FilterByRoles(
		[]topology.Role{topology.RoleValidatingPeer, topology.RoleProxyTail, topology.RoleObservingPeer},
		signerIDs(p.Signatures),
	) {
		nonLeader[n] = struct{}{}
	}

	tally := quorum.New(required)
	seen := make(map[ids.NodeID]struct{})
	for _, sig := range p.Signatures {
		if _, ok := nonLeader[sig.Signer]; !ok {
			continue
		}
		if _, dup := seen[sig.Signer]; dup {
			continue
		}
		seen[sig.Signer] = struct{}{}
		tally.Add(sig.Signer)
	}
	return tally.Check().Achieved
}

func signerIDs(sigs []Signature) []ids.NodeID {
	out := make([]ids.NodeID, len(sigs))
	for i, s := range sigs {
		out[i] = s.Signer
	}
	return out
}

// Chain is an ordered, append-only ProofChain: a prefix of Proofs whose
// length equals the number of rotations applied to the topology since
// the last commit.
type Chain struct {
	proofs []Proof
}

// NewChain returns an empty proof chain.
func NewChain() *Chain {
	return &Chain{}
}

// Proofs returns the chain's current proofs in order.
func (c *Chain) Proofs() []Proof {
	return append([]Proof(nil), c.proofs...)
}

// Len is the number of proofs applied (== rotations applied).
func (c *Chain) Len() int {
	return len(c.proofs)
}

// Append validates and appends the next proof. height must equal the
// round being negotiated; viewIndex must equal the proof's position
// (c.Len()); the proof must be complete under topo. Returns an error
// describing which check failed rather than silently dropping it, so
// the caller can log/metric the rejection (spec.md §7).
func (c *Chain) Append(proof Proof, expectedHeight uint64, topo topology.Topology) error {
	if proof.Height != expectedHeight {
		return fmt.Errorf("viewchange: proof height %d does not match expected round %d", proof.Height, expectedHeight)
	}
	if proof.ViewIndex != c.Len() {
		return fmt.Errorf("viewchange: proof view_index %d does not match chain position %d", proof.ViewIndex, c.Len())
	}
	if !proof.IsComplete(topo) {
		return fmt.Errorf("viewchange: proof at view_index %d is not complete", proof.ViewIndex)
	}
	c.proofs = append(c.proofs, proof)
	return nil
}

// Reconcile replaces the chain with the longest prefix of peerChain that
// validates against expectedHeight/topo, starting from proof 0. It never
// extends the chain past a proof that fails validation, matching the
// "accept the longest common prefix that validates; ignore suffixes
// that fail" rule.
func (c *Chain) Reconcile(peerChain []Proof, expectedHeight uint64, topo topology.Topology) {
	accepted := make([]Proof, 0, len(peerChain))
	rotated := topo
	for i, proof := range peerChain {
		if proof.Height != expectedHeight || proof.ViewIndex != i {
			break
		}
		if !proof.IsComplete(rotated) {
			break
		}
		accepted = append(accepted, proof)
		rotated = rotated.RotateAll()
	}
	if len(accepted) > len(c.proofs) {
		c.proofs = accepted
	}
}

// ResetOnCommit clears the chain after a block commits, per §4.2:
// "when the local chain commits a block, reset the applied rotations to
// zero".
func (c *Chain) ResetOnCommit() {
	c.proofs = nil
}
