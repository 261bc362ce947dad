// Package txqueue implements the transaction-queue contract the
// proposer consumes: admission, per-submitter nonce ordering, TTL
// expiry, and bounded capacity (spec.md §4.4).
package txqueue

import (
	"errors"

	"github.com/luxfi/ids"
)

// NonceReserved is the nonce value 0, never a valid transaction nonce —
// it is reserved/invalid, matching the source's per-account u32 nonce
// scheme where the sequence runs 1..MAX and wraps back to 1.
const NonceReserved uint32 = 0

// NonceMax is the wraparound point: the nonce after NonceMax is 1, not
// NonceMax+1 (which would overflow uint32 and collide with 0).
const NonceMax uint32 = ^uint32(0)

// NextNonce returns the nonce that follows n in a submitter's sequence,
// wrapping from NonceMax back to 1 (never producing NonceReserved).
func NextNonce(n uint32) uint32 {
	if n == NonceMax {
		return 1
	}
	return n + 1
}

// AcceptedTransaction has passed syntactic limits, signature check, and
// chain-id check (those checks are external collaborators — Non-goal:
// crypto primitives). It carries just enough for queue ordering and the
// block pipeline to build from.
type AcceptedTransaction struct {
	Hash           ids.ID
	Submitter      ids.NodeID
	Nonce          uint32
	CreationTimeMS int64
	TTLMS          int64
	insertionSeq   uint64
}

// ErrZeroNonce rejects a transaction carrying the reserved nonce value.
var ErrZeroNonce = errors.New("txqueue: nonce 0 is reserved")

// ErrNonceNotMonotonic rejects a transaction whose nonce does not follow
// the submitter's last accepted nonce.
var ErrNonceNotMonotonic = errors.New("txqueue: nonce is not the submitter's next nonce")

// ErrQueueFull rejects a transaction when the queue (or the submitter's
// share of it) is at capacity.
var ErrQueueFull = errors.New("txqueue: queue at capacity")

// ErrExpired rejects a transaction whose TTL has already elapsed.
var ErrExpired = errors.New("txqueue: transaction ttl expired")

// ErrAlreadyInChain rejects a transaction the chain already committed.
var ErrAlreadyInChain = errors.New("txqueue: transaction already committed")

// StateView is the slice of State the queue consults for admission and
// collection decisions: current wall time and whether a transaction
// hash has already been committed.
type StateView interface {
	CurrentTimeMS() int64
	HasTransaction(hash ids.ID) bool
}

// Queue is the bounded, per-submitter-nonce-ordered transaction pool.
type Queue struct {
	capacity        int
	capacityPerUser int

	order        []*AcceptedTransaction
	bySubmitter  map[ids.NodeID][]*AcceptedTransaction
	lastNonce    map[ids.NodeID]uint32
	insertionSeq uint64
}

// New creates an empty Queue bounded by capacity (total) and
// capacityPerUser (per submitter).
func New(capacity, capacityPerUser int) *Queue {
	return &Queue{
		capacity:        capacity,
		capacityPerUser: capacityPerUser,
		bySubmitter:     make(map[ids.NodeID][]*AcceptedTransaction),
		lastNonce:       make(map[ids.NodeID]uint32),
	}
}

// Len is the total number of queued transactions.
func (q *Queue) Len() int {
	return len(q.order)
}

// Add admits tx into the queue if it passes nonce monotonicity and
// capacity checks. Transactions from the same submitter must be added in
// nonce order; Add rejects an out-of-order or repeated nonce rather than
// reordering, since ordering is established at submission time, not at
// collection time.
func (q *Queue) Add(tx AcceptedTransaction) error {
	if tx.Nonce == NonceReserved {
		return ErrZeroNonce
	}
	if len(q.order) >= q.capacity {
		return ErrQueueFull
	}
	if q.capacityPerUser > 0 && len(q.bySubmitter[tx.Submitter]) >= q.capacityPerUser {
		return ErrQueueFull
	}
	if last, ok := q.lastNonce[tx.Submitter]; ok && tx.Nonce != NextNonce(last) {
		return ErrNonceNotMonotonic
	}

	q.insertionSeq++
	stored := tx
	stored.insertionSeq = q.insertionSeq
	q.order = append(q.order, &stored)
	q.bySubmitter[tx.Submitter] = append(q.bySubmitter[tx.Submitter], &stored)
	q.lastNonce[tx.Submitter] = tx.Nonce
	return nil
}

// CollectForBlock returns an ordered batch respecting insertion order,
// per-submitter nonce monotonicity (already guaranteed by Add), TTL
// against view.CurrentTimeMS(), maxTxs cap, and exclusion of
// already-committed transactions. Expired or already-chained
// transactions are dropped from the queue as a side effect of
// collection.
func (q *Queue) CollectForBlock(view StateView, maxTxs int) []AcceptedTransaction {
	now := view.CurrentTimeMS()
	batch := make([]AcceptedTransaction, 0, maxTxs)
	kept := q.order[:0:0]

	for _, tx := range q.order {
		expired := tx.TTLMS > 0 && tx.CreationTimeMS+tx.TTLMS < now
		inChain := view.HasTransaction(tx.Hash)
		if expired || inChain {
			continue
		}
		kept = append(kept, tx)
		if len(batch) < maxTxs {
			batch = append(batch, *tx)
		}
	}
	q.order = kept
	q.rebuildSubmitterIndex()
	return batch
}

// Remove drops the given transaction hashes from the queue, e.g. after
// they appear in a CommittedBlock.
func (q *Queue) Remove(hashes []ids.ID) {
	drop := make(map[ids.ID]struct{}, len(hashes))
	for _, h := range hashes {
		drop[h] = struct{}{}
	}
	kept := q.order[:0:0]
	for _, tx := range q.order {
		if _, ok := drop[tx.Hash]; ok {
			continue
		}
		kept = append(kept, tx)
	}
	q.order = kept
	q.rebuildSubmitterIndex()
}

func (q *Queue) rebuildSubmitterIndex() {
	for k := range q.bySubmitter {
		delete(q.bySubmitter, k)
	}
	for _, tx := range q.order {
		q.bySubmitter[tx.Submitter] = append(q.bySubmitter[tx.Submitter], tx)
	}
}
