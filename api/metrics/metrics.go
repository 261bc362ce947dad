// Copyright (C) 2020-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registerer is an interface for registering prometheus metrics
type Registerer interface {
	prometheus.Registerer
}

// Registry is an interface for prometheus registry
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRegistry creates a new prometheus registry
func NewRegistry() Registry {
	return prometheus.NewRegistry()
}

// MultiGatherer is a prometheus gatherer that can gather metrics from multiple sources
type MultiGatherer interface {
	prometheus.Gatherer
	
	// Register adds a new gatherer to this multi-gatherer
	Register(string, prometheus.Gatherer) error
}

// multiGatherer implements MultiGatherer
type multiGatherer struct {
	gatherers map[string]prometheus.Gatherer
}

// NewMultiGatherer creates a new multi-gatherer
func NewMultiGatherer() MultiGatherer {
	return &multiGatherer{
		gatherers: make(map[string]prometheus.Gatherer),
	}
}

// Register adds a new gatherer
func (mg *multiGatherer) Register(name string, gatherer prometheus.Gatherer) error {
	mg.gatherers[name] = gatherer
	return nil
}

// Gather implements prometheus.Gatherer
func (mg *multiGatherer) Gather() ([]*dto.MetricFamily, error) {
	var result []*dto.MetricFamily
	for _, g := range mg.gatherers {
		metrics, err := g.Gather()
		if err != nil {
			return nil, err
		}
		result = append(result, metrics...)
	}
	return result, nil
}

// Metrics is the prometheus-backed interface for Sumeragi round
// metrics, exposed directly as prometheus.Counter so callers can embed
// them into an HTTP /metrics handler without an adapter layer.
type Metrics interface {
	// Rounds tracks the number of consensus rounds entered.
	Rounds() prometheus.Counter

	// Committed tracks blocks successfully committed.
	Committed() prometheus.Counter

	// ViewChanged tracks completed view-change rotations.
	ViewChanged() prometheus.Counter
}

// NewMetrics creates a new metrics instance registered under namespace.
func NewMetrics(namespace string, registerer prometheus.Registerer) (Metrics, error) {
	m := &metrics{
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_started",
			Help:      "Number of consensus rounds entered",
		}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_committed",
			Help:      "Number of blocks committed",
		}),
		viewChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_changes_completed",
			Help:      "Number of completed view-change rotations",
		}),
	}

	if err := registerer.Register(m.rounds); err != nil {
		return nil, err
	}
	if err := registerer.Register(m.committed); err != nil {
		return nil, err
	}
	if err := registerer.Register(m.viewChanged); err != nil {
		return nil, err
	}

	return m, nil
}

type metrics struct {
	rounds      prometheus.Counter
	committed   prometheus.Counter
	viewChanged prometheus.Counter
}

func (m *metrics) Rounds() prometheus.Counter {
	return m.rounds
}

func (m *metrics) Committed() prometheus.Counter {
	return m.committed
}

func (m *metrics) ViewChanged() prometheus.Counter {
	return m.viewChanged
}