// Package state provides the State collaborator spec.md §3 treats as
// opaque: a read-only view, a scoped per-block handle, and a nested
// scoped per-transaction handle, with commits flowing inward-to-outward
// and abandonment dropping all scoped changes. The interfaces consumed
// by the block pipeline are defined in block/ (the consumer); this
// package supplies a concrete in-memory implementation used by tests
// and as a reference for a durable Kura-backed one.
package state

import (
	"sync"

	"github.com/luxfi/ids"

	"github.com/luxfi/sumeragi/block"
	"github.com/luxfi/sumeragi/txqueue"
)

// Clock supplies wall-clock time, injected so tests can control it.
type Clock interface {
	NowMS() int64
}

// State is the top-level handle: a read-only View plus the ability to
// open a scoped StateBlock against a given header.
type State struct {
	mu sync.RWMutex

	clock       Clock
	headHeight  uint64
	headHash    ids.ID
	prevHash    ids.ID
	committed   map[ids.ID]struct{}
	accountData map[ids.NodeID]map[string][]byte
}

// New creates an empty State at genesis (height 0, zero head hash).
func New(clock Clock) *State {
	return &State{
		clock:       clock,
		committed:   make(map[ids.ID]struct{}),
		accountData: make(map[ids.NodeID]map[string][]byte),
	}
}

// View returns a read-only snapshot handle.
func (s *State) View() *View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &View{
		clock:      s.clock,
		headHeight: s.headHeight,
		headHash:   s.headHash,
		committed:  s.committed,
	}
}

// Block opens a scoped, rollback-capable handle for building or
// validating the block described by header.
func (s *State) Block(header block.Header) (*StateBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &StateBlock{
		parent: s,
		staged: make(map[ids.NodeID]map[string][]byte),
		txHash: make(map[ids.ID]struct{}),
		header: header,
	}, nil
}

// HeadHeight returns the current committed chain height.
func (s *State) HeadHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headHeight
}

// HeadHash returns the current committed chain head hash.
func (s *State) HeadHash() ids.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headHash
}

// PreviousHeadHash returns the hash of the block before the current
// head, needed to recognize a soft-fork candidate (its previous_hash
// equals this, not the current head hash).
func (s *State) PreviousHeadHash() ids.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prevHash
}

// RollbackOneBlock moves the head back to the previous block, used when
// a soft fork supersedes the current head. newPrevHash is the hash that
// becomes the new "previous" once the replacement block is applied.
func (s *State) RollbackOneBlock(newPrevHash ids.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headHeight--
	s.headHash = s.prevHash
	s.prevHash = newPrevHash
}

// View is the read-only snapshot exposed to queries and block-sync
// responders; it satisfies both block.StateView and txqueue.StateView.
type View struct {
	clock      Clock
	headHeight uint64
	headHash   ids.ID
	committed  map[ids.ID]struct{}
}

func (v *View) CurrentTimeMS() int64         { return v.clock.NowMS() }
func (v *View) HeadHeight() uint64           { return v.headHeight }
func (v *View) HeadHash() ids.ID             { return v.headHash }
func (v *View) HasTransaction(h ids.ID) bool { _, ok := v.committed[h]; return ok }

// StateBlock is the scoped handle a single block's execution runs
// through. It satisfies block.StateBlock.
type StateBlock struct {
	parent *State
	staged map[ids.NodeID]map[string][]byte
	txHash map[ids.ID]struct{}
	header block.Header
	done   bool
}

// Transaction opens a nested handle for applying a single transaction.
// It returns the block.StateTransaction interface type (rather than the
// concrete *StateTransaction) so that *StateBlock satisfies
// block.StateBlock.
func (b *StateBlock) Transaction() block.StateTransaction {
	return &StateTransaction{
		block:  b,
		staged: make(map[ids.NodeID]map[string][]byte),
	}
}

// Commit installs this block's staged changes into the parent State and
// advances the chain head. Commit is atomic: either every staged write
// lands and the head advances, or (on a panic/partial failure before
// this point) nothing does — by construction, all the real work already
// happened in-memory before Commit is called, so there is nothing left
// to fail here.
func (b *StateBlock) Commit() error {
	if b.done {
		return block.ErrNotRunning
	}
	b.parent.mu.Lock()
	defer b.parent.mu.Unlock()

	for account, fields := range b.staged {
		dst, ok := b.parent.accountData[account]
		if !ok {
			dst = make(map[string][]byte)
			b.parent.accountData[account] = dst
		}
		for k, v := range fields {
			dst[k] = v
		}
	}
	for h := range b.txHash {
		b.parent.committed[h] = struct{}{}
	}

	b.parent.prevHash = b.parent.headHash
	b.parent.headHash = b.header.Hash
	b.parent.headHeight = b.header.Height
	b.done = true
	return nil
}

// Rollback discards all staged changes for this block.
func (b *StateBlock) Rollback() {
	b.staged = nil
	b.txHash = nil
	b.done = true
}

// StateTransaction is the nested handle a single transaction applies
// through. It satisfies block.StateTransaction.
type StateTransaction struct {
	block  *StateBlock
	staged map[ids.NodeID]map[string][]byte
	done   bool
}

// Apply is a reference no-op executor: it accepts any transaction whose
// hash has not already been staged in this block, recording it for
// commit. A real executor would run the transaction's instruction set
// against staged account data; that belongs to the WASM-executor
// collaborator (Non-goal).
func (tx *StateTransaction) Apply(accepted txqueue.AcceptedTransaction) (block.TxResult, error) {
	if _, dup := tx.block.txHash[accepted.Hash]; dup {
		return block.TxResult{TxHash: accepted.Hash, Success: false}, nil
	}
	tx.block.txHash[accepted.Hash] = struct{}{}
	return block.TxResult{TxHash: accepted.Hash, Success: true}, nil
}

// Commit flows this transaction's staged writes up into the enclosing
// StateBlock's staging area (inward-to-outward, per spec.md §3).
func (tx *StateTransaction) Commit() error {
	if tx.done {
		return block.ErrNotRunning
	}
	for account, fields := range tx.staged {
		dst, ok := tx.block.staged[account]
		if !ok {
			dst = make(map[string][]byte)
			tx.block.staged[account] = dst
		}
		for k, v := range fields {
			dst[k] = v
		}
	}
	tx.done = true
	return nil
}

// Rollback discards this transaction's staged changes without affecting
// the enclosing block.
func (tx *StateTransaction) Rollback() {
	tx.staged = nil
	tx.done = true
}
