// Copyright (C) 2020-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package health

import (
	"context"
	"time"

	"github.com/luxfi/ids"
)

// EngineView is the read-only subset of sumeragi.Engine a health check
// reports on. Declared here rather than imported from the sumeragi
// package to keep api/health a leaf dependency.
type EngineView interface {
	HeadHeight() uint64
	HeadHash() ids.ID
}

// ConsensusCheck reports liveness by tracking whether HeadHeight has
// advanced between successive checks — a stalled height across
// CommitTimeout observations indicates the round loop is stuck (no
// leader, no quorum, or network partition).
type ConsensusCheck struct {
	engine         EngineView
	commitTimeout  time.Duration
	lastHeight     uint64
	lastAdvancedAt time.Time
}

// NewConsensusCheck constructs a Checker against engine. commitTimeout
// should be set to the configured commit_time_limit_ms (plus margin);
// a height that hasn't advanced within that window is reported
// unhealthy.
func NewConsensusCheck(engine EngineView, commitTimeout time.Duration) *ConsensusCheck {
	return &ConsensusCheck{
		engine:         engine,
		commitTimeout:  commitTimeout,
		lastHeight:     engine.HeadHeight(),
		lastAdvancedAt: time.Now(),
	}
}

// HealthCheck implements Checker.
func (c *ConsensusCheck) HealthCheck(ctx context.Context) (interface{}, error) {
	start := time.Now()
	height := c.engine.HeadHeight()
	if height != c.lastHeight {
		c.lastHeight = height
		c.lastAdvancedAt = start
	}

	stalled := time.Since(c.lastAdvancedAt) > c.commitTimeout
	check := Check{
		Name:    "sumeragi_head_advancing",
		Healthy: !stalled,
		Duration: time.Since(start),
		Details: map[string]interface{}{
			"head_height": height,
			"head_hash":   c.engine.HeadHash().String(),
		},
	}
	if stalled {
		check.Error = "head height has not advanced within commit_time_limit_ms"
	}

	return Report{
		Healthy:  !stalled,
		Checks:   []Check{check},
		Duration: time.Since(start),
	}, nil
}
