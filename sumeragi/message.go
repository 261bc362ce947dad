// Package sumeragi implements the consensus core (spec.md §4.5): the
// single-threaded cooperative state machine that runs the
// Propose/Vote/Tally/Commit round and the view-change protocol.
package sumeragi

import (
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/sumeragi/block"
	"github.com/luxfi/sumeragi/peer"
	"github.com/luxfi/sumeragi/viewchange"
)

// MessageKind tags the variant of a SumeragiMessage, mirroring the wire
// tags of spec.md §6's SumeragiMessage sum type.
type MessageKind int

const (
	KindBlockCreated MessageKind = iota
	KindBlockSigned
	KindBlockCommitted
	KindBlockSyncUpdate
	KindViewChangeSuggested
)

func (k MessageKind) String() string {
	switch k {
	case KindBlockCreated:
		return "BlockCreated"
	case KindBlockSigned:
		return "BlockSigned"
	case KindBlockCommitted:
		return "BlockCommitted"
	case KindBlockSyncUpdate:
		return "BlockSyncUpdate"
	case KindViewChangeSuggested:
		return "ViewChangeSuggested"
	default:
		return "Unknown"
	}
}

// SumeragiMessage is the payload carried by a MessagePacket.
type SumeragiMessage interface {
	Kind() MessageKind
}

// BlockCreated is broadcast by the Leader at the start of a round.
type BlockCreated struct {
	Block block.NewBlock
}

func (BlockCreated) Kind() MessageKind { return KindBlockCreated }

// BlockSigned is sent by a Validating peer to the Proxy Tail only.
type BlockSigned struct {
	Hash      ids.ID
	Signature block.Signature
}

func (BlockSigned) Kind() MessageKind { return KindBlockSigned }

// BlockCommitted is broadcast by the Proxy Tail once quorum is reached.
type BlockCommitted struct {
	Hash          ids.ID
	CommitteeSigs []block.Signature
	Block         block.SignedBlock
}

func (BlockCommitted) Kind() MessageKind { return KindBlockCommitted }

// BlockSyncUpdate carries a block obtained out-of-band from the block
// synchronizer; it must be re-validated like any other block.
type BlockSyncUpdate struct {
	Block block.SignedBlock
}

func (BlockSyncUpdate) Kind() MessageKind { return KindBlockSyncUpdate }

// ViewChangeSuggested carries a single peer's view-change vote.
type ViewChangeSuggested struct {
	Proof viewchange.Proof
}

func (ViewChangeSuggested) Kind() MessageKind { return KindViewChangeSuggested }

// MessagePacket is the full unit a peer sends: the sender's proof chain
// (for reconciliation) plus an optional SumeragiMessage (spec.md §6:
// "SumeragiPacket := ProofChain (Option SumeragiMessage)").
type MessagePacket struct {
	Sender    ids.NodeID
	ProofChain []viewchange.Proof
	Message   SumeragiMessage // nil when this packet carries only a proof-chain heartbeat
}

func (p MessagePacket) String() string {
	if p.Message == nil {
		return fmt.Sprintf("MessagePacket{sender=%s, heartbeat}", p.Sender)
	}
	return fmt.Sprintf("MessagePacket{sender=%s, %s}", p.Sender, p.Message.Kind())
}

// ControlMessage is the local control-plane surface (spec.md §6): the
// only two ways anything outside Sumeragi may mutate its state.
type ControlMessage interface {
	isControlMessage()
}

// UpdateTopology is pushed by the State layer when register/unregister
// peer instructions commit.
type UpdateTopology struct {
	Peers []peer.ID
}

func (UpdateTopology) isControlMessage() {}

// Shutdown requests a graceful drain-and-exit.
type Shutdown struct{}

func (Shutdown) isControlMessage() {}
