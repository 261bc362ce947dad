package txqueue

import (
	"context"
	"time"

	"github.com/luxfi/log"
)

// Broadcaster sends a transaction-gossip frame to all peers. Transport
// concerns (framing, encryption) live in the network package; the
// gossiper only decides what and when.
type Broadcaster interface {
	BroadcastTransactionGossip(batch []AcceptedTransaction) error
}

// Gossiper periodically broadcasts up to gossipSize queued transactions
// every gossipPeriod (spec.md §4.4).
type Gossiper struct {
	queue        *Queue
	broadcaster  Broadcaster
	gossipSize   int
	gossipPeriod time.Duration
	log          log.Logger
}

// NewGossiper builds a Gossiper over queue, broadcasting through b.
func NewGossiper(queue *Queue, b Broadcaster, gossipSize int, gossipPeriod time.Duration, logger log.Logger) *Gossiper {
	return &Gossiper{
		queue:        queue,
		broadcaster:  b,
		gossipSize:   gossipSize,
		gossipPeriod: gossipPeriod,
		log:          logger,
	}
}

// Run drives the periodic gossip loop until ctx is cancelled.
func (g *Gossiper) Run(ctx context.Context) {
	ticker := time.NewTicker(g.gossipPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.gossipOnce()
		}
	}
}

func (g *Gossiper) gossipOnce() {
	batch := g.batch()
	if len(batch) == 0 {
		return
	}
	if err := g.broadcaster.BroadcastTransactionGossip(batch); err != nil {
		g.log.Warn("transaction gossip broadcast failed", "error", err)
	}
}

func (g *Gossiper) batch() []AcceptedTransaction {
	n := g.gossipSize
	if n > len(g.queue.order) {
		n = len(g.queue.order)
	}
	out := make([]AcceptedTransaction, n)
	for i := 0; i < n; i++ {
		out[i] = *g.queue.order[i]
	}
	return out
}

// ReceiveGossip re-accepts a peer's gossiped batch into the local queue.
// Transactions already queued or already committed are silently skipped
// (Add's nonce check naturally rejects repeats); genuine admission
// errors are logged but do not abort the batch.
func (g *Gossiper) ReceiveGossip(batch []AcceptedTransaction, view StateView) {
	for _, tx := range batch {
		if view.HasTransaction(tx.Hash) {
			continue
		}
		if err := g.queue.Add(tx); err != nil {
			g.log.Debug("dropped gossiped transaction", "hash", tx.Hash, "error", err)
		}
	}
}
