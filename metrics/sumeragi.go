// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

// SumeragiMetrics is the set of round-level observability counters the
// consensus engine reports through: rounds entered, blocks committed,
// and view changes completed (one counter, not broken down by reason).
// It is built on this package's
// generic Registry so it can be wired to a real prometheus.Registerer
// in production or left as an in-memory Registry in tests.
type SumeragiMetrics struct {
	roundsStarted      Counter
	blocksCommitted    Counter
	lastCommittedHeight Gauge
	viewChanges         Counter
}

// NewSumeragiMetrics registers the counters/gauge a consensus engine
// reports against reg.
func NewSumeragiMetrics(reg Registry) *SumeragiMetrics {
	return &SumeragiMetrics{
		roundsStarted:       reg.NewCounter("sumeragi_rounds_started"),
		blocksCommitted:     reg.NewCounter("sumeragi_blocks_committed"),
		lastCommittedHeight: reg.NewGauge("sumeragi_last_committed_height"),
		viewChanges:         reg.NewCounter("sumeragi_view_changes_completed"),
	}
}

// RoundsStarted records entry into a new consensus round.
func (m *SumeragiMetrics) RoundsStarted() {
	if m == nil {
		return
	}
	m.roundsStarted.Inc()
}

// BlocksCommitted records a successful commit at height.
func (m *SumeragiMetrics) BlocksCommitted(height uint64) {
	if m == nil {
		return
	}
	m.blocksCommitted.Inc()
	m.lastCommittedHeight.Set(float64(height))
}

// ViewChangesCompleted records a completed view-change rotation. The
// reason is reported as its integer code; callers that want a labeled
// prometheus counter per reason should wire Registry to a labeled
// collector instead — this Registry is reason-agnostic by design.
func (m *SumeragiMetrics) ViewChangesCompleted(reason int) {
	if m == nil {
		return
	}
	m.viewChanges.Inc()
}
