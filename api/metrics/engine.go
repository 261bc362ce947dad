// Copyright (C) 2020-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

// EngineMetrics adapts a prometheus-backed Metrics instance to the
// shape sumeragi.Engine.SetMetrics expects (RoundsStarted,
// BlocksCommitted, ViewChangesCompleted), without this package
// depending on the sumeragi package — Go interface satisfaction here
// is structural.
type EngineMetrics struct {
	m Metrics
}

// NewEngineMetrics wraps m for use as an engine's metrics sink.
func NewEngineMetrics(m Metrics) *EngineMetrics {
	return &EngineMetrics{m: m}
}

// RoundsStarted increments the rounds-entered counter.
func (e *EngineMetrics) RoundsStarted() {
	e.m.Rounds().Inc()
}

// BlocksCommitted increments the blocks-committed counter. height is
// not exported as a gauge here since prometheus.Counter has no Set;
// pair this with a separate Gauge collector if last-height tracking
// is needed alongside the prometheus registry.
func (e *EngineMetrics) BlocksCommitted(height uint64) {
	e.m.Committed().Inc()
}

// ViewChangesCompleted increments the view-change counter.
func (e *EngineMetrics) ViewChangesCompleted(reason int) {
	e.m.ViewChanged().Inc()
}
