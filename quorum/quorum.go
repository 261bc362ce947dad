// Package quorum tallies distinct-signer votes against a threshold. It
// backs both the block pipeline's commit-signature count (min_votes_for_commit)
// and the view-change proof chain's completeness check
// (min_votes_for_commit-1 non-Leader signatures), which are the same
// "how many distinct peers have signed this" question applied to two
// different thresholds and signer sets.
package quorum

import "github.com/luxfi/ids"

// Result reports the outcome of a threshold check.
type Result struct {
	// Achieved is true once Count >= Threshold.
	Achieved bool
	// Count is the number of distinct signers tallied.
	Count int
	// Threshold is the required distinct-signer count.
	Threshold int
	// Signers lists the distinct node IDs tallied, in the order first added.
	Signers []ids.NodeID
}

// Tally counts distinct signers toward a threshold. Re-adding a signer
// that already voted is a no-op: a peer's signature counts once per
// round regardless of how many times the message carrying it is
// retransmitted or re-gossiped.
type Tally struct {
	threshold int
	order     []ids.NodeID
	seen      map[ids.NodeID]struct{}
}

// New creates a Tally requiring threshold distinct signers to achieve
// quorum.
func New(threshold int) *Tally {
	return &Tally{
		threshold: threshold,
		seen:      make(map[ids.NodeID]struct{}),
	}
}

// Add records a signer's vote. Returns true if this call is what pushed
// the tally to Achieved (false if already achieved, or not yet, or the
// signer had already voted).
func (t *Tally) Add(signer ids.NodeID) bool {
	wasAchieved := t.Len() >= t.threshold
	if _, ok := t.seen[signer]; ok {
		return false
	}
	t.seen[signer] = struct{}{}
	t.order = append(t.order, signer)
	return !wasAchieved && t.Len() >= t.threshold
}

// Len returns the number of distinct signers tallied so far.
func (t *Tally) Len() int {
	return len(t.order)
}

// Threshold returns the configured required signer count.
func (t *Tally) Threshold() int {
	return t.threshold
}

// SetThreshold updates the required signer count, e.g. when topology
// changes mid-round and min_votes_for_commit is recomputed.
func (t *Tally) SetThreshold(threshold int) {
	t.threshold = threshold
}

// Check reports the current quorum status without mutating the tally.
func (t *Tally) Check() Result {
	return Result{
		Achieved:  t.Len() >= t.threshold,
		Count:     t.Len(),
		Threshold: t.threshold,
		Signers:   append([]ids.NodeID(nil), t.order...),
	}
}

// Reset clears all recorded signers, keeping the configured threshold.
func (t *Tally) Reset() {
	t.order = nil
	t.seen = make(map[ids.NodeID]struct{})
}

// Contains reports whether signer has already been tallied.
func (t *Tally) Contains(signer ids.NodeID) bool {
	_, ok := t.seen[signer]
	return ok
}
