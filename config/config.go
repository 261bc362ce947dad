// Package config holds the core-relevant Sumeragi configuration
// parameters (spec.md §6) and a fluent Builder for constructing them,
// matching the teacher's Config+Builder convention.
package config

import (
	"fmt"
	"time"

	"github.com/luxfi/sumeragi/peer"
)

// Config holds all core consensus parameters.
type Config struct {
	// BlockTimeMS bounds the Propose phase.
	BlockTimeMS int64 `json:"blockTimeMs"`
	// CommitTimeLimitMS bounds the combined Vote+Tally+Commit phases.
	CommitTimeLimitMS int64 `json:"commitTimeLimitMs"`
	// MaxTransactionsInBlock is the hard cap on txs per block.
	MaxTransactionsInBlock int `json:"maxTransactionsInBlock"`
	// GossipBatchSize is the max txs per gossip frame.
	GossipBatchSize int `json:"gossipBatchSize"`
	// GossipPeriodMS is the period between tx-gossip frames and
	// block-sync requests.
	GossipPeriodMS int64 `json:"gossipPeriodMs"`
	// MaxClockDriftMS bounds how far in the future a transaction's
	// timestamp may be before the builder rejects it.
	MaxClockDriftMS int64 `json:"maxClockDriftMs"`
	// QueueCapacity is the total transaction-queue bound.
	QueueCapacity int `json:"queueCapacity"`
	// QueueCapacityPerUser is the per-submitter transaction-queue bound.
	QueueCapacityPerUser int `json:"queueCapacityPerUser"`
	// ActorChannelCapacity sizes the bounded channels components
	// communicate through (§5 concurrency model).
	ActorChannelCapacity int `json:"actorChannelCapacity"`
	// BlockSyncBatchSize is how many blocks a ShareBlocks response
	// streams beyond the one overlap block.
	BlockSyncBatchSize int `json:"blockSyncBatchSize"`
	// TrustedPeers is the initial peer set; it may be superseded by
	// on-chain peer registrations via UpdateTopology.
	TrustedPeers []peer.ID `json:"-"`

	// testMode gates debug-only behavior (debug_force_soft_fork); it is
	// never set by the Builder's public surface, only by NewTestConfig.
	testMode bool
}

// IsTestMode reports whether this Config was constructed via
// NewTestConfig, gating debug_force_soft_fork (spec.md §9 Open
// Question: resolved as a constructor-time flag, never a runtime-loaded
// config field).
func (c *Config) IsTestMode() bool {
	return c.testMode
}

// PipelineTimeMS is block_time_ms + commit_time_limit_ms, the overall
// deadline for one full round.
func (c *Config) PipelineTimeMS() int64 {
	return c.BlockTimeMS + c.CommitTimeLimitMS
}

// Default core parameter values, matching
// original_source/config/src/sumeragi.rs's DEFAULT_* constants.
const (
	DefaultBlockTimeMS            = 2000
	DefaultCommitTimeLimitMS      = 4000
	DefaultActorChannelCapacity   = 100
	DefaultGossipPeriodMS         = 1000
	DefaultGossipBatchSize        = 500
	DefaultMaxTransactionsInBlock = 512
	DefaultMaxClockDriftMS        = 1000
	DefaultQueueCapacity          = 1 << 16
	DefaultQueueCapacityPerUser   = 1 << 12
	DefaultBlockSyncBatchSize     = 4
)

// Builder provides a fluent interface for constructing a Config.
type Builder struct {
	config *Config
	err    error
}

// NewBuilder creates a Builder seeded with the package defaults.
func NewBuilder() *Builder {
	return &Builder{
		config: &Config{
			BlockTimeMS:            DefaultBlockTimeMS,
			CommitTimeLimitMS:      DefaultCommitTimeLimitMS,
			MaxTransactionsInBlock: DefaultMaxTransactionsInBlock,
			GossipBatchSize:        DefaultGossipBatchSize,
			GossipPeriodMS:         DefaultGossipPeriodMS,
			MaxClockDriftMS:        DefaultMaxClockDriftMS,
			QueueCapacity:          DefaultQueueCapacity,
			QueueCapacityPerUser:   DefaultQueueCapacityPerUser,
			ActorChannelCapacity:   DefaultActorChannelCapacity,
			BlockSyncBatchSize:     DefaultBlockSyncBatchSize,
		},
	}
}

// WithBlockTime sets the Propose-phase deadline.
func (b *Builder) WithBlockTime(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if d <= 0 {
		b.err = fmt.Errorf("config: block time must be positive, got %s", d)
		return b
	}
	b.config.BlockTimeMS = d.Milliseconds()
	return b
}

// WithCommitTimeLimit sets the Vote+Tally+Commit deadline.
func (b *Builder) WithCommitTimeLimit(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if d <= 0 {
		b.err = fmt.Errorf("config: commit time limit must be positive, got %s", d)
		return b
	}
	b.config.CommitTimeLimitMS = d.Milliseconds()
	return b
}

// WithMaxTransactionsInBlock sets the per-block transaction cap.
func (b *Builder) WithMaxTransactionsInBlock(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 1 {
		b.err = fmt.Errorf("config: max transactions in block must be >= 1, got %d", n)
		return b
	}
	b.config.MaxTransactionsInBlock = n
	return b
}

// WithGossip sets the gossip batch size and period together, since a
// batch larger than what fits in one period is a misconfiguration the
// caller should catch early.
func (b *Builder) WithGossip(batchSize int, period time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if batchSize < 1 {
		b.err = fmt.Errorf("config: gossip batch size must be >= 1, got %d", batchSize)
		return b
	}
	if period <= 0 {
		b.err = fmt.Errorf("config: gossip period must be positive, got %s", period)
		return b
	}
	b.config.GossipBatchSize = batchSize
	b.config.GossipPeriodMS = period.Milliseconds()
	return b
}

// WithQueueCapacity sets the total and per-submitter transaction-queue
// bounds.
func (b *Builder) WithQueueCapacity(total, perUser int) *Builder {
	if b.err != nil {
		return b
	}
	if total < 1 || perUser < 1 || perUser > total {
		b.err = fmt.Errorf("config: invalid queue capacity total=%d perUser=%d", total, perUser)
		return b
	}
	b.config.QueueCapacity = total
	b.config.QueueCapacityPerUser = perUser
	return b
}

// WithTrustedPeers sets the initial peer set.
func (b *Builder) WithTrustedPeers(peers []peer.ID) *Builder {
	if b.err != nil {
		return b
	}
	if len(peers) == 0 {
		b.err = fmt.Errorf("config: trusted peers must not be empty")
		return b
	}
	b.config.TrustedPeers = append([]peer.ID(nil), peers...)
	return b
}

// Build validates and returns the final Config.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.config.TrustedPeers) == 0 {
		return nil, fmt.Errorf("config: trusted peers must be set before Build")
	}
	if b.config.CommitTimeLimitMS < b.config.BlockTimeMS {
		return nil, fmt.Errorf("config: commit time limit must be >= block time")
	}
	clone := *b.config
	return &clone, nil
}

// NewTestConfig builds a Config with debug_force_soft_fork semantics
// enabled, for tests only. There is no Builder method that reaches this
// state: production configuration can never request it.
func NewTestConfig(peers []peer.ID) (*Config, error) {
	cfg, err := NewBuilder().WithTrustedPeers(peers).Build()
	if err != nil {
		return nil, err
	}
	cfg.testMode = true
	return cfg, nil
}
