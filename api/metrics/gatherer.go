// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NewPrefixGatherer returns a gatherer for a single Sumeragi node's
// metrics, to be registered under its own namespace (e.g. "sumeragi")
// by the caller's NewMetrics(namespace, ...) call before merging into
// a MultiGatherer alongside block-sync and peer-gossip collectors.
func NewPrefixGatherer() prometheus.Gatherer {
	return prometheus.NewRegistry()
}