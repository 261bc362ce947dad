// Package block implements the block pipeline state machine:
// UnsignedBlock -> NewBlock -> ValidBlock -> CommittedBlock (spec.md §3,
// §4.3). Each transition consumes the previous value and returns a new
// one; callers must treat the consumed value as dead, matching the
// source's one-way linear transitions (Go has no linear types, so this
// is a convention, not an enforced invariant).
package block

import (
	"errors"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/sumeragi/topology"
	"github.com/luxfi/sumeragi/txqueue"
)

// Hasher computes content hashes for headers and blocks. Hashing itself
// is a cryptographic-primitive concern (Non-goal); the core only
// consumes it through this interface.
type Hasher interface {
	HashHeader(h Header) ids.ID
}

// Merkleizer folds a sequence of hashes into a single merkle root, used
// for both the transaction-set root and the results root. Also a
// crypto-primitive collaborator.
type Merkleizer interface {
	MerkleRoot(hashes []ids.ID) ids.ID
}

// Signature is a signer's signature over a block hash.
type Signature struct {
	Signer ids.NodeID
	Sig    []byte
}

// Header is the frozen, position-independent description of a block.
// Once an UnsignedBlock is built its Header never changes across
// subsequent transitions. Hash is computed once at construction time by
// the injected Hasher and frozen alongside the rest of the header,
// rather than recomputed on every access.
type Header struct {
	Hash                  ids.ID
	Height                uint64
	PreviousHash          ids.ID
	MerkleRootOfTxs       ids.ID
	MerkleRootOfResults   ids.ID
	CreationTimeMS        int64
	ViewChangeIndex       int
	ConsensusEstimationMS int64
}

// ConsensusEstimation computes block_time + commit_time_limit/2
// (integer division), the value stored in Header.ConsensusEstimationMS.
func ConsensusEstimation(blockTimeMS, commitTimeLimitMS int64) int64 {
	return blockTimeMS + commitTimeLimitMS/2
}

// StateView is the read-only slice of State the builder consults:
// current head position and wall-clock time. Defined here, the
// consumer, rather than in the state package, so block never imports
// state (state imports block for Header).
type StateView interface {
	CurrentTimeMS() int64
	HeadHeight() uint64
	HeadHash() ids.ID
}

// StateBlock is the scoped, rollback-capable handle NewBlock.Validate
// and CommittedBlock.Apply operate through.
type StateBlock interface {
	Transaction() StateTransaction
	Commit() error
	Rollback()
}

// StateTransaction is the nested, rollback-capable handle a single
// transaction is applied through.
type StateTransaction interface {
	Apply(tx txqueue.AcceptedTransaction) (TxResult, error)
	Commit() error
	Rollback()
}

// TxResult is the outcome of applying one transaction.
type TxResult struct {
	TxHash  ids.ID
	Success bool
}

// BlockRejectionReason names why NewBlock.Validate refused to promote
// to ValidBlock.
type BlockRejectionReason int

const (
	ResultMismatch BlockRejectionReason = iota
	TransactionRejected
)

func (r BlockRejectionReason) String() string {
	switch r {
	case ResultMismatch:
		return "ResultMismatch"
	case TransactionRejected:
		return "TransactionRejected"
	default:
		return "Unknown"
	}
}

// RejectionError reports a failed NewBlock.Validate call.
type RejectionError struct {
	Reason BlockRejectionReason
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("block: rejected (%s): %s", e.Reason, e.Detail)
}

// CommitRejectReason names why ValidBlock.Commit refused to promote to
// CommittedBlock.
type CommitRejectReason int

const (
	InsufficientSignatures CommitRejectReason = iota
	WrongPreviousHash
	WrongHeight
)

func (r CommitRejectReason) String() string {
	switch r {
	case InsufficientSignatures:
		return "InsufficientSignatures"
	case WrongPreviousHash:
		return "WrongPreviousHash"
	case WrongHeight:
		return "WrongHeight"
	default:
		return "Unknown"
	}
}

// CommitRejectError reports a failed ValidBlock.Commit call.
type CommitRejectError struct {
	Reason CommitRejectReason
}

func (e *CommitRejectError) Error() string {
	return fmt.Sprintf("block: commit rejected (%s)", e.Reason)
}

// ErrNotRunning is returned by Apply when the underlying StateBlock has
// already been committed or rolled back.
var ErrNotRunning = errors.New("block: state handle is no longer running")

// Builder assembles an UnsignedBlock from a transaction batch, applying
// clock-drift rejection before freezing the header.
type Builder struct {
	txs         []txqueue.AcceptedTransaction
	maxDriftMS  int64
	hasher      Hasher
	merkleizer  Merkleizer
	blockTimeMS int64
	commitLimit int64
}

// NewBuilder starts a builder over the given already-selected
// transaction batch (the caller obtained it from txqueue's
// CollectTransactionsForBlock).
func NewBuilder(txs []txqueue.AcceptedTransaction, hasher Hasher, merkleizer Merkleizer, maxClockDriftMS, blockTimeMS, commitTimeLimitMS int64) *Builder {
	return &Builder{
		txs:         txs,
		maxDriftMS:  maxClockDriftMS,
		hasher:      hasher,
		merkleizer:  merkleizer,
		blockTimeMS: blockTimeMS,
		commitLimit: commitTimeLimitMS,
	}
}

// Chain assigns the header against the current chain head described by
// view, dropping any transaction time-stamped more than maxClockDrift
// into the future, and returns the UnsignedBlock.
func (b *Builder) Chain(viewChangeIndex int, view StateView) UnsignedBlock {
	now := view.CurrentTimeMS()
	accepted := make([]txqueue.AcceptedTransaction, 0, len(b.txs))
	txHashes := make([]ids.ID, 0, len(b.txs))
	for _, tx := range b.txs {
		if tx.CreationTimeMS > now+b.maxDriftMS {
			continue
		}
		accepted = append(accepted, tx)
		txHashes = append(txHashes, tx.Hash)
	}

	header := Header{
		Height:                view.HeadHeight() + 1,
		PreviousHash:          view.HeadHash(),
		MerkleRootOfTxs:       b.merkleizer.MerkleRoot(txHashes),
		CreationTimeMS:        now,
		ViewChangeIndex:       viewChangeIndex,
		ConsensusEstimationMS: ConsensusEstimation(b.blockTimeMS, b.commitLimit),
	}
	header.Hash = b.hasher.HashHeader(header)
	return UnsignedBlock{Header: header, Transactions: accepted}
}

// UnsignedBlock is a frozen header plus its transaction set, not yet
// signed by anyone.
type UnsignedBlock struct {
	Header       Header
	Transactions []txqueue.AcceptedTransaction
}

// Hash returns the block's content hash (over the frozen header).
func (u UnsignedBlock) Hash() ids.ID {
	return u.Header.Hash
}

// Sign produces the leader's signature over the block hash, promoting
// to NewBlock.
func (u UnsignedBlock) Sign(signer ids.NodeID, sign func(hash ids.ID) ([]byte, error)) (NewBlock, error) {
	sig, err := sign(u.Header.Hash)
	if err != nil {
		return NewBlock{}, err
	}
	return NewBlock{
		Header:          u.Header,
		Transactions:    u.Transactions,
		LeaderSignature: Signature{Signer: signer, Sig: sig},
	}, nil
}

// NewBlock is a leader-signed, not-yet-executed block (spec.md §3).
type NewBlock struct {
	Header          Header
	Transactions    []txqueue.AcceptedTransaction
	LeaderSignature Signature
}

// Hash returns the block's content hash.
func (n NewBlock) Hash() ids.ID {
	return n.Header.Hash
}

// Validate re-executes each transaction against a freshly obtained
// StateBlock and compares the resulting results-merkle-root with the
// header, promoting to ValidBlock on success. sb is consumed: on
// failure it has been rolled back; on success it is left open for the
// eventual CommittedBlock.Apply to commit.
func (n NewBlock) Validate(sb StateBlock, merkleizer Merkleizer) (ValidBlock, error) {
	resultHashes := make([]ids.ID, 0, len(n.Transactions))
	for _, tx := range n.Transactions {
		txn := sb.Transaction()
		result, err := txn.Apply(tx)
		if err != nil || !result.Success {
			txn.Rollback()
			sb.Rollback()
			return ValidBlock{}, &RejectionError{Reason: TransactionRejected, Detail: tx.Hash.String()}
		}
		if err := txn.Commit(); err != nil {
			sb.Rollback()
			return ValidBlock{}, &RejectionError{Reason: TransactionRejected, Detail: err.Error()}
		}
		resultHashes = append(resultHashes, result.TxHash)
	}

	// n.Header.MerkleRootOfResults, frozen at proposal time, is the
	// leader's own execution result; a zero value means the leader
	// proposed before executing (accepted unconditionally — there is
	// nothing yet to mismatch against).
	computedResultsRoot := merkleizer.MerkleRoot(resultHashes)
	if n.Header.MerkleRootOfResults != (ids.ID{}) && computedResultsRoot != n.Header.MerkleRootOfResults {
		sb.Rollback()
		return ValidBlock{}, &RejectionError{Reason: ResultMismatch}
	}

	return ValidBlock{
		Header:              n.Header,
		Transactions:        n.Transactions,
		LeaderSignature:     n.LeaderSignature,
		ComputedResultsRoot: computedResultsRoot,
		stateBlock:          sb,
	}, nil
}

// ValidBlock has been re-executed and its results verified, but does not
// yet carry enough committee signatures to commit.
type ValidBlock struct {
	Header          Header
	Transactions    []txqueue.AcceptedTransaction
	LeaderSignature Signature
	CommitteeSigs   []Signature
	// ComputedResultsRoot is this node's own re-execution result,
	// checked against Header.MerkleRootOfResults during Validate.
	ComputedResultsRoot ids.ID

	stateBlock StateBlock
}

// Hash returns the block's content hash.
func (v ValidBlock) Hash() ids.ID {
	return v.Header.Hash
}

// AddSignature records a validator/proxy-tail signature collected
// during the Vote/Tally phases, returning the updated ValidBlock.
func (v ValidBlock) AddSignature(sig Signature) ValidBlock {
	v.CommitteeSigs = append(append([]Signature(nil), v.CommitteeSigs...), sig)
	return v
}

// Commit checks that the leader signature plus CommitteeSigs, filtered
// to {Leader, ProxyTail, Validating} roles under topo, reach
// topo.MinVotesForCommit(), and that the header still targets topo's
// expected round. On success it promotes to CommittedBlock; on failure
// it returns a CommitRejectError and leaves the underlying StateBlock
// untouched (caller decides whether to retry or roll back).
func (v ValidBlock) Commit(topo topology.Topology, expectedHeadHash ids.ID, expectedHeight uint64) (CommittedBlock, error) {
	if v.Header.PreviousHash != expectedHeadHash {
		return CommittedBlock{}, &CommitRejectError{Reason: WrongPreviousHash}
	}
	if v.Header.Height != expectedHeight {
		return CommittedBlock{}, &CommitRejectError{Reason: WrongHeight}
	}

	signerIDs := make([]ids.NodeID, 0, len(v.CommitteeSigs)+1)
	signerIDs = append(signerIDs, v.LeaderSignature.Signer)
	for _, s := range v.CommitteeSigs {
		signerIDs = append(signerIDs, s.Signer)
	}
	filtered := topo.FilterByRoles(
		[]topology.Role{topology.RoleLeader, topology.RoleProxyTail, topology.RoleValidatingPeer},
		signerIDs,
	)
	distinct := make(map[ids.NodeID]struct{}, len(filtered))
	for _, id := range filtered {
		distinct[id] = struct{}{}
	}
	if len(distinct) < topo.MinVotesForCommit() {
		return CommittedBlock{}, &CommitRejectError{Reason: InsufficientSignatures}
	}

	return CommittedBlock{
		Header:          v.Header,
		Transactions:    v.Transactions,
		LeaderSignature: v.LeaderSignature,
		CommitteeSigs:   v.CommitteeSigs,
		stateBlock:      v.stateBlock,
	}, nil
}

// CommittedBlock carries sufficient signatures and is ready to be
// installed as the new chain head.
type CommittedBlock struct {
	Header          Header
	Transactions    []txqueue.AcceptedTransaction
	LeaderSignature Signature
	CommitteeSigs   []Signature

	stateBlock StateBlock
}

// Hash returns the block's content hash.
func (c CommittedBlock) Hash() ids.ID {
	return c.Header.Hash
}

// Apply atomically installs the block's state changes by committing the
// StateBlock handle carried since Validate, advancing the chain head.
// Apply is idempotent-unsafe by design: calling it twice on the same
// CommittedBlock commits an already-committed StateBlock a second time
// and is a caller bug, matching the source's one-way transition model.
func (c CommittedBlock) Apply() error {
	if c.stateBlock == nil {
		return ErrNotRunning
	}
	return c.stateBlock.Commit()
}

// SignedBlock is the wire-level shape of a block carried over the
// network by BlockCreated/BlockCommitted/BlockSyncUpdate: plain data,
// with no attached StateBlock handle. A receiver must always push it
// back through NewBlock.Validate before trusting it (spec.md §4.6:
// "Never apply blocks without re-validation").
type SignedBlock struct {
	Header          Header
	Transactions    []txqueue.AcceptedTransaction
	LeaderSignature Signature
	CommitteeSigs   []Signature
}

// FromCommitted captures a CommittedBlock's content for transmission.
func FromCommitted(c CommittedBlock) SignedBlock {
	return SignedBlock{
		Header:          c.Header,
		Transactions:    c.Transactions,
		LeaderSignature: c.LeaderSignature,
		CommitteeSigs:   c.CommitteeSigs,
	}
}

// AsNewBlock reconstructs the NewBlock value that re-entered the local
// pipeline (via Validate) to re-derive trust in this block's content,
// rather than trusting the wire bytes directly.
func (s SignedBlock) AsNewBlock() NewBlock {
	return NewBlock{
		Header:          s.Header,
		Transactions:    s.Transactions,
		LeaderSignature: s.LeaderSignature,
	}
}

// WithCommitteeSigs replays the collected committee signatures onto a
// ValidBlock freshly produced by re-validating AsNewBlock(), so the
// receiver can attempt Commit without re-collecting votes it already
// received over the wire.
func (s SignedBlock) WithCommitteeSigs(v ValidBlock) ValidBlock {
	for _, sig := range s.CommitteeSigs {
		v = v.AddSignature(sig)
	}
	return v
}
