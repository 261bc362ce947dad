// Package blocksync implements the block synchronizer (spec.md §4.6):
// a cooperative task that periodically requests any blocks a random
// peer has beyond this node's head, and answers the same request for
// others. Grounded on
// original_source/core/src/block_sync.rs's BlockSynchronizer actor.
package blocksync

import (
	"context"
	"math/rand"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/sampler"

	"github.com/luxfi/sumeragi/block"
	"github.com/luxfi/sumeragi/peer"
)

// GetBlocksAfter requests any blocks the responder has beyond the
// overlap described by LatestHash/PreviousHash.
type GetBlocksAfter struct {
	LatestHash   ids.ID // zero value means "no block yet"
	PreviousHash ids.ID
	Requester    ids.NodeID
}

// ShareBlocks answers a GetBlocksAfter with up to BlockBatchSize+1
// subsequent blocks.
type ShareBlocks struct {
	Blocks    []block.SignedBlock
	Responder ids.NodeID
}

// Network is the subset of the §4.8 adapter the synchronizer needs.
type Network interface {
	OnlinePeers() []peer.ID
	Post(target ids.NodeID, msg any) error
}

// Ledger is the read side of local durable storage the responder
// consults; a thin façade over the Kura collaborator (Non-goal: Kura's
// own implementation, only this boundary is in scope).
type Ledger interface {
	// HeightOfHash returns the height of the block with the given hash
	// and true, or false if unknown.
	HeightOfHash(hash ids.ID) (uint64, bool)
	// BlockAtHeight returns the block at height and true, or false if
	// it does not exist (e.g. past the current head).
	BlockAtHeight(height uint64) (block.SignedBlock, bool)
	HeadHash() ids.ID
}

// Sumeragi is the subset of the consensus core the synchronizer feeds
// BlockSyncUpdate messages into.
type Sumeragi interface {
	DeliverBlockSyncUpdate(ctx context.Context, b block.SignedBlock) error
}

// Synchronizer runs the periodic request/response loop.
type Synchronizer struct {
	self          ids.NodeID
	network       Network
	ledger        Ledger
	sumeragi      Sumeragi
	log           log.Logger
	gossipPeriod  time.Duration
	blockBatch    int
	sample        sampler.Uniform

	stateUpdated chan struct{}
	recv         chan recvMsg
}

type recvMsg struct {
	get   *GetBlocksAfter
	share *ShareBlocks
}

// New constructs a Synchronizer.
func New(self ids.NodeID, network Network, ledger Ledger, sm Sumeragi, logger log.Logger, gossipPeriod time.Duration, blockBatchSize int) *Synchronizer {
	return &Synchronizer{
		self:         self,
		network:      network,
		ledger:       ledger,
		sumeragi:     sm,
		log:          logger,
		gossipPeriod: gossipPeriod,
		blockBatch:   blockBatchSize,
		sample:       sampler.NewUniform(),
		stateUpdated: make(chan struct{}, 1),
		recv:         make(chan recvMsg, 8),
	}
}

// NotifyStateUpdated signals that local head moved, prompting an
// immediate sync request rather than waiting for the next tick.
func (s *Synchronizer) NotifyStateUpdated() {
	select {
	case s.stateUpdated <- struct{}{}:
	default:
	}
}

// ReceiveGetBlocksAfter delivers an inbound request for processing on
// the synchronizer's own cooperative task.
func (s *Synchronizer) ReceiveGetBlocksAfter(ctx context.Context, req GetBlocksAfter) error {
	select {
	case s.recv <- recvMsg{get: &req}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReceiveShareBlocks delivers an inbound response for processing.
func (s *Synchronizer) ReceiveShareBlocks(ctx context.Context, resp ShareBlocks) error {
	select {
	case s.recv <- recvMsg{share: &resp}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the synchronizer's cooperative loop until ctx is
// cancelled.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.gossipPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.requestFromRandomPeer()
		case <-s.stateUpdated:
			s.requestFromRandomPeer()
		case msg := <-s.recv:
			switch {
			case msg.get != nil:
				s.handleGetBlocksAfter(*msg.get)
			case msg.share != nil:
				s.handleShareBlocks(ctx, *msg.share)
			}
		}
	}
}

// requestFromRandomPeer picks one online peer uniformly at random and
// asks for anything beyond the local head (§4.6: "pick a random online
// peer (uniform sample)"). Network errors are swallowed; the next tick
// retries, possibly against a different peer.
func (s *Synchronizer) requestFromRandomPeer() {
	peers := s.network.OnlinePeers()
	if len(peers) == 0 {
		return
	}
	if err := s.sample.Initialize(len(peers)); err != nil {
		s.log.Warn("block-sync: failed to initialize peer sampler", "err", err)
		return
	}
	picked, ok := s.sample.Sample(1)
	if !ok || len(picked) == 0 {
		// Fall back to a plain random index if the sampler's
		// without-replacement pool is exhausted (shouldn't happen for
		// a fresh Initialize, but never block sync on it).
		picked = []int{rand.Intn(len(peers))}
	}
	target := peers[picked[0]]

	req := GetBlocksAfter{
		LatestHash:   s.ledger.HeadHash(),
		PreviousHash: s.previousHash(),
		Requester:    s.self,
	}
	if err := s.network.Post(target.NodeID(), req); err != nil {
		s.log.Debug("block-sync: request failed, will retry next tick", "peer", target, "err", err)
	}
}

func (s *Synchronizer) previousHash() ids.ID {
	head := s.ledger.HeadHash()
	height, ok := s.ledger.HeightOfHash(head)
	if !ok || height == 0 {
		return ids.ID{}
	}
	prevBlock, ok := s.ledger.BlockAtHeight(height - 1)
	if !ok {
		return ids.ID{}
	}
	return prevBlock.Header.Hash
}

// handleGetBlocksAfter answers a peer's request (§4.6: responder
// side).
func (s *Synchronizer) handleGetBlocksAfter(req GetBlocksAfter) {
	localHead := s.ledger.HeadHash()
	if req.LatestHash == localHead || req.PreviousHash == localHead {
		return // requester is caught up, or soft-forking against us
	}

	startHeight := uint64(1)
	if req.PreviousHash != (ids.ID{}) {
		height, ok := s.ledger.HeightOfHash(req.PreviousHash)
		if !ok {
			s.log.Error("block-sync: requested previous_hash not found", "hash", req.PreviousHash)
			return
		}
		startHeight = height + 1
	}

	blocks := make([]block.SignedBlock, 0, s.blockBatch+1)
	for h := startHeight; len(blocks) < s.blockBatch+1; h++ {
		b, ok := s.ledger.BlockAtHeight(h)
		if !ok {
			break
		}
		if b.Header.Hash == req.LatestHash {
			continue // requester already has this one
		}
		blocks = append(blocks, b)
	}

	if len(blocks) == 0 {
		s.log.Error("block-sync: no blocks to share despite known previous_hash", "hash", req.PreviousHash)
		return
	}
	if err := s.network.Post(req.Requester, ShareBlocks{Blocks: blocks, Responder: s.self}); err != nil {
		s.log.Debug("block-sync: failed to share blocks", "err", err)
	}
}

// handleShareBlocks feeds each received block into Sumeragi for
// re-validation (§4.6: "Never apply blocks without re-validation").
func (s *Synchronizer) handleShareBlocks(ctx context.Context, resp ShareBlocks) {
	for _, b := range resp.Blocks {
		if err := s.sumeragi.DeliverBlockSyncUpdate(ctx, b); err != nil {
			s.log.Debug("block-sync: failed to deliver update to sumeragi", "err", err)
			return
		}
	}
}
