// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import "testing"

func TestSumeragiMetrics_RoundsStarted(t *testing.T) {
	m := NewSumeragiMetrics(NewRegistry())
	m.RoundsStarted()
	m.RoundsStarted()
	if got := m.roundsStarted.Read(); got != 2 {
		t.Fatalf("roundsStarted = %d, want 2", got)
	}
}

func TestSumeragiMetrics_BlocksCommitted(t *testing.T) {
	m := NewSumeragiMetrics(NewRegistry())
	m.BlocksCommitted(5)
	m.BlocksCommitted(6)
	if got := m.blocksCommitted.Read(); got != 2 {
		t.Fatalf("blocksCommitted = %d, want 2", got)
	}
	if got := m.lastCommittedHeight.Read(); got != 6 {
		t.Fatalf("lastCommittedHeight = %v, want 6", got)
	}
}

func TestSumeragiMetrics_ViewChangesCompleted(t *testing.T) {
	m := NewSumeragiMetrics(NewRegistry())
	m.ViewChangesCompleted(1)
	if got := m.viewChanges.Read(); got != 1 {
		t.Fatalf("viewChanges = %d, want 1", got)
	}
}

func TestSumeragiMetrics_NilSafe(t *testing.T) {
	var m *SumeragiMetrics
	// Must not panic when no metrics sink has been configured.
	m.RoundsStarted()
	m.BlocksCommitted(1)
	m.ViewChangesCompleted(0)
}
