// Copyright (C) 2020-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func readCounter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestEngineMetrics_RoundsStarted(t *testing.T) {
	m, err := NewMetrics("test_engine_rounds", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	em := NewEngineMetrics(m)

	em.RoundsStarted()
	em.RoundsStarted()
	if got := readCounter(t, m.Rounds()); got != 2 {
		t.Fatalf("rounds = %v, want 2", got)
	}
}

func TestEngineMetrics_BlocksCommitted(t *testing.T) {
	m, err := NewMetrics("test_engine_committed", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	em := NewEngineMetrics(m)

	em.BlocksCommitted(10)
	if got := readCounter(t, m.Committed()); got != 1 {
		t.Fatalf("committed = %v, want 1", got)
	}
}

func TestEngineMetrics_ViewChangesCompleted(t *testing.T) {
	m, err := NewMetrics("test_engine_viewchanged", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	em := NewEngineMetrics(m)

	em.ViewChangesCompleted(1)
	em.ViewChangesCompleted(2)
	if got := readCounter(t, m.ViewChanged()); got != 2 {
		t.Fatalf("viewChanged = %v, want 2", got)
	}
}
