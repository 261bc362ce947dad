package sumeragi

import (
	"context"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/log"

	"github.com/luxfi/sumeragi/block"
	"github.com/luxfi/sumeragi/config"
	"github.com/luxfi/sumeragi/peer"
	"github.com/luxfi/sumeragi/quorum"
	"github.com/luxfi/sumeragi/topology"
	"github.com/luxfi/sumeragi/txqueue"
	"github.com/luxfi/sumeragi/viewchange"
)

// Network is the subset of the §4.8 network adapter Sumeragi consumes:
// point-to-point and broadcast delivery of SumeragiPacket-equivalent
// messages.
type Network interface {
	Broadcast(pkt MessagePacket) error
	Post(peer ids.NodeID, pkt MessagePacket) error
}

// Queue is the subset of txqueue.Queue the Propose phase pulls from.
type Queue interface {
	CollectForBlock(view txqueue.StateView, maxTxs int) []txqueue.AcceptedTransaction
	Remove(hashes []ids.ID)
}

// View is the combined read-only state snapshot the engine needs: the
// block builder's view (head position, clock) plus the tx queue's view
// (clock, already-chained lookup). A single collaborator type (e.g.
// state.View) satisfies both.
type View interface {
	block.StateView
	txqueue.StateView
}

// Sink receives notifications the block-synchronizer and peer-gossiper
// consume after a successful commit (spec.md §4.5 Commit step: "notify
// block-sync and peer-gossiper").
type Sink interface {
	NotifyCommitted(headHash ids.ID, headHeight uint64)
}

// BlockStore durably persists a committed block before collaborators
// are notified — the Kura boundary (spec.md §7: a Fatal persist
// failure stops this node's consensus participation, it is not a
// retryable or logged-and-ignored error like the other classes).
type BlockStore interface {
	PutBlock(b block.SignedBlock) error
}

// HeadRollback lets the engine recognize and recover from a soft fork
// (spec.md §4.3/§4.5): a BlockSyncUpdate at the current head height
// whose previous_hash matches the block before the current head, not
// the current head itself. state.State is the only implementation;
// an engine constructed without SetHeadRollback treats every such
// update as stale and drops it, same as before soft-fork recovery was
// wired in.
type HeadRollback interface {
	PreviousHeadHash() ids.ID
	RollbackOneBlock(newPrevHash ids.ID)
}

// Clock supplies the engine's notion of now; swappable in tests so
// round timers advance deterministically.
type Clock interface {
	NowMS() int64
}

// Signer produces this node's signature over a block hash. Signing
// itself is a cryptographic-primitive concern (Non-goal); the engine
// only consumes it through this function type.
type Signer func(hash ids.ID) ([]byte, error)

// Metrics records round-level observability counters. An engine
// constructed without a call to SetMetrics defaults to a no-op
// implementation, so every call site can unconditionally invoke it.
type Metrics interface {
	RoundsStarted()
	BlocksCommitted(height uint64)
	ViewChangesCompleted(reason int)
}

type noopMetrics struct{}

func (noopMetrics) RoundsStarted()           {}
func (noopMetrics) BlocksCommitted(uint64)   {}
func (noopMetrics) ViewChangesCompleted(int) {}

// roundPhase names which phase the current round is in, driving which
// messages the engine expects and which timer is live.
type roundPhase int

const (
	phaseIdle roundPhase = iota
	phaseProposed
	phaseVoting
)

// Engine holds the full mutable consensus state described by spec.md
// §4.5: {topology, proofs, head_hash, head_height, pending_block}. It
// is driven exclusively by Run's cooperative loop; no other goroutine
// may touch its fields (§5: "one task owns the consensus state").
type Engine struct {
	self ids.NodeID
	sign Signer

	cfg   *config.Config
	log   log.Logger
	clock Clock

	hasher     block.Hasher
	merkleizer block.Merkleizer
	stateView  func() View
	openBlock  func(h block.Header) (block.StateBlock, error)

	network  Network
	queue    Queue
	sink     Sink
	store    BlockStore
	metrics  Metrics
	rollback HeadRollback

	// genesisLeader is position 0 of the topology this engine was
	// constructed with, used to gate debug_force_soft_fork (spec.md
	// §9: "suppresses this replacement on the genesis leader").
	genesisLeader ids.NodeID

	// fatal is set when a Kura persist failure occurs; Run observes it
	// and exits rather than continuing to participate in rounds it can
	// no longer durably record (spec.md §7 Fatal error class).
	fatal bool

	net chan MessagePacket
	ctl chan ControlMessage

	registry *peer.Registry
	topo     topology.Topology
	proofs   *viewchange.Chain

	headHash   ids.ID
	headHeight uint64

	phase   roundPhase
	pending *block.ValidBlock // set once this node has a validated, not-yet-committed block
	tally   *quorum.Tally     // Proxy Tail's in-progress vote count for pending

	deadline time.Time // when the current phase's timeout fires

	// vcVotes accumulates distinct signatures for the view-change proof
	// currently being negotiated at (head_height+1, proofs.Len()), merged
	// across the individual single-signer ViewChangeSuggested broadcasts
	// each peer sends (spec.md §4.5: "on collecting min_votes_for_commit-1
	// matching proofs at the same view_index").
	vcVotes map[ids.NodeID]viewchange.Signature
	vcReason viewchange.Reason
}

// New constructs an Engine. stateView and openBlock are late-bound
// collaborators so the engine never imports the state package directly
// (state imports block, which sumeragi also imports; binding through
// closures here keeps the dependency one-directional).
func New(
	self ids.NodeID,
	sign Signer,
	cfg *config.Config,
	logger log.Logger,
	clock Clock,
	hasher block.Hasher,
	merkleizer block.Merkleizer,
	stateView func() View,
	openBlock func(h block.Header) (block.StateBlock, error),
	network Network,
	queue Queue,
	sink Sink,
	initialHeadHash ids.ID,
	initialHeadHeight uint64,
) *Engine {
	peers := make([]peer.ID, len(cfg.TrustedPeers))
	copy(peers, cfg.TrustedPeers)

	registry := peer.NewRegistry(peers)
	registry.AddListener(registryLogger{log: logger})

	var genesisLeader ids.NodeID
	if len(peers) > 0 {
		genesisLeader = peers[0].NodeID()
	}

	return &Engine{
		self:          self,
		sign:          sign,
		cfg:           cfg,
		log:           logger,
		clock:         clock,
		hasher:        hasher,
		merkleizer:    merkleizer,
		stateView:     stateView,
		openBlock:     openBlock,
		network:       network,
		queue:         queue,
		sink:          sink,
		metrics:       noopMetrics{},
		genesisLeader: genesisLeader,
		net:           make(chan MessagePacket, cfg.ActorChannelCapacity),
		ctl:           make(chan ControlMessage, cfg.ActorChannelCapacity),
		registry:      registry,
		topo:          topology.New(peers),
		proofs:        viewchange.NewChain(),
		headHash:      initialHeadHash,
		headHeight:    initialHeadHeight,
		phase:         phaseIdle,
	}
}

// registryLogger reports peer-set changes committed through the
// control plane (spec.md §6 "Control plane", UpdateTopology) at debug
// level, satisfying peer.SetCallbackListener.
type registryLogger struct {
	log log.Logger
}

func (r registryLogger) OnPeerAdded(p peer.ID) {
	r.log.Debug("peer registered", "peer", p.NodeID())
}

func (r registryLogger) OnPeerRemoved(p peer.ID) {
	r.log.Debug("peer unregistered", "peer", p.NodeID())
}

// Deliver enqueues a packet received from the network adapter. It never
// blocks the caller indefinitely in production use: the channel is
// sized by ActorChannelCapacity and back-pressure is an accepted
// trade-off (§5: "lossy-retryable" producers).
func (e *Engine) Deliver(ctx context.Context, pkt MessagePacket) error {
	select {
	case e.net <- pkt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeliverBlockSyncUpdate wraps a block obtained out-of-band (by the
// block synchronizer, §4.6) into a SumeragiMessage and enqueues it like
// any network packet; it is still re-validated before being trusted.
func (e *Engine) DeliverBlockSyncUpdate(ctx context.Context, b block.SignedBlock) error {
	return e.Deliver(ctx, MessagePacket{Sender: e.self, Message: BlockSyncUpdate{Block: b}})
}

// Control enqueues a control-plane message.
func (e *Engine) Control(ctx context.Context, msg ControlMessage) error {
	select {
	case e.ctl <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Topology returns a snapshot of the current topology. Safe to call
// only between rounds in tests; concurrent callers in production must
// go through Sink/query paths instead (§5: Topology is cloned per
// round, not shared live).
func (e *Engine) Topology() topology.Topology { return e.topo }

// HeadHeight returns the engine's last-committed height.
func (e *Engine) HeadHeight() uint64 { return e.headHeight }

// HeadHash returns the engine's last-committed block hash.
func (e *Engine) HeadHash() ids.ID { return e.headHash }

// SetMetrics binds a Metrics sink; must be called before Run starts
// the cooperative loop since Metrics is read without synchronization.
func (e *Engine) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	e.metrics = m
}

// SetBlockStore binds the durable persistence boundary; must be called
// before Run starts. An engine with no BlockStore commits in-memory
// only, suitable for tests.
func (e *Engine) SetBlockStore(s BlockStore) {
	e.store = s
}

// SetHeadRollback binds the collaborator the engine rolls back through
// on soft-fork recovery; must be called before Run starts. An engine
// with no HeadRollback cannot recover from a soft fork and drops the
// competing BlockSyncUpdate instead (the pre-wiring behavior).
func (e *Engine) SetHeadRollback(r HeadRollback) {
	e.rollback = r
}

// Run drives the single-threaded cooperative loop (spec.md §4.5,
// §5: "suspension points only at channel recv, timer tick, and
// explicit yield"). It returns when ctx is cancelled or a Shutdown
// control message is observed. The message being handled always
// completes first; on Shutdown the pending, uncommitted block is
// dropped and queued packets are left unprocessed. Blocks committed
// earlier were already persisted by finalize when a BlockStore is bound.
func (e *Engine) Run(ctx context.Context) {
	e.startRound(0)

	for {
		if e.fatal {
			e.log.Error("halting consensus participation after fatal error")
			return
		}

		timer := time.NewTimer(time.Until(e.deadline))
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case msg := <-e.ctl:
			timer.Stop()
			if e.handleControl(msg) {
				return
			}

		case pkt := <-e.net:
			timer.Stop()
			e.handlePacket(pkt)

		case <-timer.C:
			e.handleTimeout()
		}
	}
}

// handleControl applies a control message and reports whether the loop
// should exit (Shutdown).
func (e *Engine) handleControl(msg ControlMessage) bool {
	switch m := msg.(type) {
	case UpdateTopology:
		e.reconcileRegistry(m.Peers)
		e.topo = e.topo.UpdatePeerList(e.registry.Peers())
		e.log.Debug("topology updated", "peers", len(m.Peers))
		return false
	case Shutdown:
		e.log.Info("shutdown requested, draining")
		if e.pending != nil {
			e.pending = nil // in-flight StateBlock dropped: implicit rollback (§5)
		}
		return true
	default:
		return false
	}
}

// reconcileRegistry diffs the incoming peer set against the registry's
// current set and registers/unregisters the difference, so
// SetCallbackListener observers (registryLogger today, a durable
// State-layer listener in a fuller build) see exactly which peers
// changed rather than a whole-list replacement.
func (e *Engine) reconcileRegistry(next []peer.ID) {
	wanted := make(map[ids.NodeID]peer.ID, len(next))
	for _, p := range next {
		wanted[p.NodeID()] = p
	}

	for _, p := range e.registry.Peers() {
		if _, ok := wanted[p.NodeID()]; !ok {
			e.registry.Unregister(p)
		}
	}
	for _, p := range next {
		e.registry.Register(p)
	}
}

func (e *Engine) handlePacket(pkt MessagePacket) {
	e.proofs.Reconcile(pkt.ProofChain, e.headHeight+1, e.topo)
	if pkt.Message == nil {
		return
	}
	switch m := pkt.Message.(type) {
	case BlockCreated:
		e.onBlockCreated(m)
	case BlockSigned:
		e.onBlockSigned(pkt.Sender, m)
	case BlockCommitted:
		e.onBlockCommitted(m)
	case BlockSyncUpdate:
		e.onBlockSyncUpdate(m)
	case ViewChangeSuggested:
		e.onViewChangeSuggested(m)
	}
}

func (e *Engine) handleTimeout() {
	switch e.phase {
	case phaseIdle:
		if e.topo.Leader().NodeID() == e.self {
			e.propose()
			return
		}
		e.suggestViewChange(viewchange.LeaderUnresponsive)
	case phaseVoting:
		if e.tally != nil {
			// We are the Proxy Tail and our own quorum attempt ran
			// out the clock: BlockUnratified, distinct from peers
			// who sent BlockSigned and simply never heard back.
			e.suggestViewChange(viewchange.BlockUnratified)
			return
		}
		e.suggestViewChange(viewchange.ProxyTailUnresponsive)
	default:
		e.suggestViewChange(viewchange.LeaderUnresponsive)
	}
}

// startRound resets round-local state and arms the Propose-phase
// deadline; viewIndex is the view-change proof chain length to stamp
// into the next block this node proposes.
func (e *Engine) startRound(viewIndex int) {
	e.phase = phaseIdle
	e.pending = nil
	e.tally = nil
	e.vcVotes = make(map[ids.NodeID]viewchange.Signature)
	e.deadline = e.now().Add(time.Duration(e.cfg.BlockTimeMS) * time.Millisecond)
	e.metrics.RoundsStarted()
	_ = viewIndex
}

func (e *Engine) now() time.Time {
	return time.UnixMilli(e.clock.NowMS())
}

// propose runs the Leader's side of the round (spec.md §4.5 Propose).
func (e *Engine) propose() {
	view := e.stateView()
	txs := e.queue.CollectForBlock(view, e.cfg.MaxTransactionsInBlock)
	builder := block.NewBuilder(txs, e.hasher, e.merkleizer, e.cfg.MaxClockDriftMS, e.cfg.BlockTimeMS, e.cfg.CommitTimeLimitMS)
	unsigned := builder.Chain(e.proofs.Len(), view)

	newBlock, err := unsigned.Sign(e.self, e.sign)
	if err != nil {
		e.log.Error("failed to sign proposed block", "err", err)
		return
	}

	if err := e.network.Broadcast(e.packet(BlockCreated{Block: newBlock})); err != nil {
		e.log.Warn("broadcast BlockCreated failed", "err", err)
	}
	e.beginCommitPhase(newBlock.Header.Hash)
}

func (e *Engine) beginCommitPhase(blockHash ids.ID) {
	e.phase = phaseVoting
	e.deadline = e.now().Add(time.Duration(e.cfg.CommitTimeLimitMS) * time.Millisecond)
	if e.topo.Role(e.selfPeer()) == topology.RoleProxyTail {
		e.tally = quorum.New(e.topo.MinVotesForCommit())
	}
	_ = blockHash
}

// selfPeer resolves this node's peer.ID within the current topology by
// NodeID; used only to determine this node's role.
func (e *Engine) selfPeer() peer.ID {
	for _, p := range e.topo.Peers() {
		if p.NodeID() == e.self {
			return p
		}
	}
	return peer.ID{}
}

// onBlockCreated is the Vote phase (spec.md §4.5).
func (e *Engine) onBlockCreated(m BlockCreated) {
	if e.pending != nil {
		return // already have a candidate this round
	}
	if m.Block.LeaderSignature.Signer != e.topo.Leader().NodeID() {
		e.log.Warn("BlockCreated not signed by topology leader, dropping")
		return
	}

	sb, err := e.openBlock(m.Block.Header)
	if err != nil {
		e.log.Error("failed to open state block", "err", err)
		return
	}
	valid, err := m.Block.Validate(sb, e.merkleizer)
	if err != nil {
		e.log.Warn("block validation failed", "err", err)
		return
	}
	e.pending = &valid
	e.beginCommitPhase(valid.Hash())

	if e.topo.Role(e.selfPeer()) == topology.RoleLeader {
		return // leader already counts its own signature via LeaderSignature
	}
	sig, err := e.sign(valid.Hash())
	if err != nil {
		e.log.Error("failed to sign block", "err", err)
		return
	}
	signed := BlockSigned{Hash: valid.Hash(), Signature: block.Signature{Signer: e.self, Sig: sig}}
	if err := e.network.Post(e.topo.ProxyTail().NodeID(), e.packet(signed)); err != nil {
		e.log.Warn("post BlockSigned to proxy tail failed", "err", err)
	}
}

// onBlockSigned is the Tally phase (Proxy Tail only; spec.md §4.5).
func (e *Engine) onBlockSigned(sender ids.NodeID, m BlockSigned) {
	if e.pending == nil || e.tally == nil || e.pending.Hash() != m.Hash {
		return
	}
	*e.pending = e.pending.AddSignature(block.Signature{Signer: sender, Sig: m.Signature.Sig})
	e.tally.Add(sender)
	e.tally.Add(e.pending.LeaderSignature.Signer)
	if !e.tally.Check().Achieved {
		return
	}

	committed, err := e.pending.Commit(e.topo, e.headHash, e.headHeight+1)
	if err != nil {
		e.log.Warn("commit rejected despite tally", "err", err)
		return
	}
	signed := block.FromCommitted(committed)
	msg := BlockCommitted{Hash: committed.Hash(), CommitteeSigs: committed.CommitteeSigs, Block: signed}
	if err := e.network.Broadcast(e.packet(msg)); err != nil {
		e.log.Warn("broadcast BlockCommitted failed", "err", err)
	}
	e.finalize(committed)
}

// onBlockCommitted is the Commit phase run by every peer (spec.md
// §4.5).
func (e *Engine) onBlockCommitted(m BlockCommitted) {
	if e.pending != nil && e.pending.Hash() == m.Hash {
		committed, err := e.pending.Commit(e.topo, e.headHash, e.headHeight+1)
		if err == nil {
			e.finalize(committed)
			return
		}
	}
	// We never validated this block locally (e.g. missed BlockCreated);
	// re-validate from the wire copy before trusting it.
	e.revalidateAndCommit(m.Block)
}

func (e *Engine) onBlockSyncUpdate(m BlockSyncUpdate) {
	e.revalidateAndCommit(m.Block)
}

// revalidateAndCommit re-runs a wire-carried block through the normal
// Validate -> Commit pipeline; it never trusts a peer's claim that a
// block already committed elsewhere (spec.md §4.6).
func (e *Engine) revalidateAndCommit(signed block.SignedBlock) {
	if signed.Header.Height != e.headHeight+1 {
		if e.isSoftForkCandidate(signed) {
			e.recoverFromSoftFork(signed)
			return
		}
		if signed.Header.Height <= e.headHeight {
			return // already have this height or older; nothing to do
		}
		e.log.Warn("block-sync update skips ahead of local head, dropping", "height", signed.Header.Height)
		return
	}

	sb, err := e.openBlock(signed.Header)
	if err != nil {
		e.log.Error("failed to open state block for sync update", "err", err)
		return
	}
	valid, err := signed.AsNewBlock().Validate(sb, e.merkleizer)
	if err != nil {
		e.log.Warn("block-sync candidate failed validation", "err", err)
		return
	}
	valid = signed.WithCommitteeSigs(valid)

	committed, err := valid.Commit(e.topo, signed.Header.PreviousHash, signed.Header.Height)
	if err != nil {
		e.log.Warn("block-sync candidate failed commit check", "err", err)
		return
	}
	e.finalize(committed)
}

// isSoftForkCandidate reports whether signed is a soft-fork replacement
// for the current head (spec.md §4.3): it targets the current head's
// height (not height+1), its hash differs from what we already have,
// and its previous_hash matches the block before our current head
// rather than the head itself. debug_force_soft_fork suppresses this
// on the genesis leader, for deterministic tests (spec.md §9).
func (e *Engine) isSoftForkCandidate(signed block.SignedBlock) bool {
	if e.rollback == nil {
		return false
	}
	if signed.Header.Height != e.headHeight {
		return false
	}
	if signed.Header.Hash == e.headHash {
		return false // identical to what we already have, not a fork
	}
	if signed.Header.PreviousHash != e.rollback.PreviousHeadHash() {
		return false
	}
	if e.cfg.IsTestMode() && e.self == e.genesisLeader {
		return false
	}
	return true
}

// recoverFromSoftFork rolls the local head back one block and installs
// signed in its place (spec.md §4.3 "Soft fork"), never trusting the
// wire copy without the usual Validate -> Commit re-check. A successful
// recovery also raises this node's own SoftFork view-change vote, since
// the prior local commit is now known to have been on the wrong branch.
func (e *Engine) recoverFromSoftFork(signed block.SignedBlock) {
	e.log.Warn("soft fork detected, rolling back local head", "height", signed.Header.Height, "replacement_hash", signed.Header.Hash)
	e.rollback.RollbackOneBlock(signed.Header.PreviousHash)
	e.headHeight--
	e.headHash = signed.Header.PreviousHash

	sb, err := e.openBlock(signed.Header)
	if err != nil {
		e.log.Error("failed to open state block for soft-fork replacement", "err", err)
		return
	}
	valid, err := signed.AsNewBlock().Validate(sb, e.merkleizer)
	if err != nil {
		e.log.Warn("soft-fork replacement failed validation", "err", err)
		return
	}
	valid = signed.WithCommitteeSigs(valid)

	committed, err := valid.Commit(e.topo, signed.Header.PreviousHash, signed.Header.Height)
	if err != nil {
		e.log.Warn("soft-fork replacement failed commit check", "err", err)
		return
	}
	e.finalize(committed)
	e.suggestViewChange(viewchange.SoftFork)
}

// finalize applies a CommittedBlock, advances head, rotates topology,
// clears round state, and notifies collaborators (spec.md §4.5 Commit
// step).
func (e *Engine) finalize(committed block.CommittedBlock) {
	if err := committed.Apply(); err != nil {
		e.log.Error("fatal: failed to apply committed block", "err", err)
		e.fatal = true
		return
	}
	e.queue.Remove(txHashes(committed))

	if e.store != nil {
		if err := e.store.PutBlock(block.FromCommitted(committed)); err != nil {
			e.log.Error("fatal: failed to persist committed block to kura, halting consensus participation", "err", err)
			e.fatal = true
			return
		}
	}

	e.headHash = committed.Hash()
	e.headHeight = committed.Header.Height
	e.metrics.BlocksCommitted(e.headHeight)
	e.proofs.ResetOnCommit()
	e.topo = e.topo.RotateSetA()

	if e.sink != nil {
		e.sink.NotifyCommitted(e.headHash, e.headHeight)
	}
	e.startRound(0)
}

func txHashes(c block.CommittedBlock) []ids.ID {
	out := make([]ids.ID, len(c.Transactions))
	for i, tx := range c.Transactions {
		out[i] = tx.Hash
	}
	return out
}

// suggestViewChange broadcasts this node's single-signer view-change
// vote for the current (height, view_index) and folds it into the
// local accumulator, same as a vote received from a peer.
func (e *Engine) suggestViewChange(reason viewchange.Reason) {
	height := e.headHeight + 1
	viewIndex := e.proofs.Len()
	sig, err := e.sign(viewChangeSigningHash(height, viewIndex, reason))
	if err != nil {
		e.log.Error("failed to sign view-change vote", "err", err)
		return
	}
	proof := viewchange.Proof{
		Height:     height,
		ViewIndex:  viewIndex,
		Reason:     reason,
		Signatures: []viewchange.Signature{{Signer: e.self, Sig: sig}},
	}
	if err := e.network.Broadcast(e.packet(ViewChangeSuggested{Proof: proof})); err != nil {
		e.log.Warn("broadcast ViewChangeSuggested failed", "err", err)
	}
	e.onViewChangeSuggested(ViewChangeSuggested{Proof: proof})
}

// onViewChangeSuggested merges an incoming single-signer (or partial)
// proof into the vote accumulator for the current (height, view_index).
// Once the merged proof is complete under the current topology, it is
// appended to the chain and the topology rotates (spec.md §4.5).
func (e *Engine) onViewChangeSuggested(m ViewChangeSuggested) {
	expectedHeight := e.headHeight + 1
	if m.Proof.Height != expectedHeight || m.Proof.ViewIndex != e.proofs.Len() {
		e.log.Debug("dropping view-change vote for stale round", "height", m.Proof.Height, "view", m.Proof.ViewIndex)
		return
	}
	if e.vcVotes == nil {
		e.vcVotes = make(map[ids.NodeID]viewchange.Signature)
	}
	for _, sig := range m.Proof.Signatures {
		if _, ok := e.vcVotes[sig.Signer]; !ok {
			e.vcVotes[sig.Signer] = sig
			e.vcReason = m.Proof.Reason
		}
	}

	merged := viewchange.Proof{
		Height:    expectedHeight,
		ViewIndex: e.proofs.Len(),
		Reason:    e.vcReason,
	}
	for _, sig := range e.vcVotes {
		merged.Signatures = append(merged.Signatures, sig)
	}

	if err := e.proofs.Append(merged, expectedHeight, e.topo); err != nil {
		return // not yet complete; keep accumulating
	}
	e.log.Info("view change complete, rotating leader", "reason", merged.Reason, "view", merged.ViewIndex)
	e.metrics.ViewChangesCompleted(int(merged.Reason))
	e.topo = e.topo.RotateAll()
	e.startRound(e.proofs.Len())
}

// viewChangeSigningHash is a placeholder content-binding for the
// signature a view-change vote carries; a real implementation signs
// the canonical encoding of (height, viewIndex, reason) via the
// injected codec, which is outside this package's concern.
func viewChangeSigningHash(height uint64, viewIndex int, reason viewchange.Reason) ids.ID {
	var id ids.ID
	id[0] = byte(height)
	id[1] = byte(viewIndex)
	id[2] = byte(reason)
	return id
}

func (e *Engine) packet(msg SumeragiMessage) MessagePacket {
	return MessagePacket{Sender: e.self, ProofChain: e.proofs.Proofs(), Message: msg}
}
