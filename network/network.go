// Package network implements the C8 network adapter (spec.md §4.8):
// authenticated, length-prefixed, encrypted point-to-point delivery of
// typed NetworkMessage frames, handshake-gated online-peer tracking,
// and fan-out to the four consumers (Sumeragi, block-sync, transaction
// gossip, peers-gossip). Wire framing lives here directly rather than
// in a separate package, since framing is a thin concern of this one
// adapter.
package network

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/sumeragi/codec"
	"github.com/luxfi/sumeragi/peer"
)

// MessageTag is the one-byte discriminator prefixing every frame
// (spec.md §6's NetworkMessage sum type).
type MessageTag byte

const (
	TagSumeragi MessageTag = iota
	TagBlockSync
	TagTransactionGossip
	TagPeersGossip
)

func (t MessageTag) String() string {
	switch t {
	case TagSumeragi:
		return "Sumeragi"
	case TagBlockSync:
		return "BlockSync"
	case TagTransactionGossip:
		return "TransactionGossip"
	case TagPeersGossip:
		return "PeersGossip"
	default:
		return "Unknown"
	}
}

// MaxFrameSize bounds a single message's encoded payload; frames
// exceeding it abort the connection (spec.md §4.8).
const MaxFrameSize = 16 << 20 // 16 MiB

// ErrFrameTooLarge is returned by Decode when a frame exceeds
// MaxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("network: frame exceeds max size of %d bytes", MaxFrameSize)

// Frame is one length-prefixed, tagged wire message: a 4-byte
// big-endian length (of tag+payload), one tag byte, then the payload.
type Frame struct {
	Tag     MessageTag
	Payload []byte
}

// Encode serializes f to its wire representation.
func Encode(f Frame) ([]byte, error) {
	body := make([]byte, 1+len(f.Payload))
	body[0] = byte(f.Tag)
	copy(body[1:], f.Payload)
	if len(body) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// Decode reads exactly one frame from buf, returning it and the number
// of bytes consumed.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < 4 {
		return Frame{}, 0, fmt.Errorf("network: short frame header")
	}
	length := binary.BigEndian.Uint32(buf[:4])
	if length > MaxFrameSize {
		return Frame{}, 0, ErrFrameTooLarge
	}
	if len(buf) < 4+int(length) {
		return Frame{}, 0, fmt.Errorf("network: incomplete frame")
	}
	body := buf[4 : 4+int(length)]
	if len(body) < 1 {
		return Frame{}, 0, fmt.Errorf("network: empty frame body")
	}
	return Frame{Tag: MessageTag(body[0]), Payload: body[1:]}, 4 + int(length), nil
}

// MarshalPayload encodes a typed message into a frame payload using the
// shared wire codec.
func MarshalPayload(v interface{}) ([]byte, error) {
	return codec.WireCodec.Marshal(v)
}

// UnmarshalPayload decodes a frame payload into v.
func UnmarshalPayload(payload []byte, v interface{}) error {
	return codec.WireCodec.Unmarshal(payload, v)
}

// KeyExchanger performs the handshake key exchange; a real
// implementation is a cryptographic-primitive concern (Non-goal), so
// this is an injected collaborator, not an algorithm implemented here.
type KeyExchanger interface {
	Exchange(ctx context.Context, remote peer.ID) (AEADSession, error)
}

// AEADSession seals/opens frames for one authenticated connection.
type AEADSession interface {
	Seal(plaintext []byte) (ciphertext []byte, err error)
	Open(ciphertext []byte) (plaintext []byte, err error)
}

// Handler dispatches a decoded, decrypted frame from a given sender to
// the appropriate consumer component.
type Handler interface {
	HandleSumeragi(ctx context.Context, from ids.NodeID, payload []byte) error
	HandleBlockSync(ctx context.Context, from ids.NodeID, payload []byte) error
	HandleTransactionGossip(ctx context.Context, from ids.NodeID, payload []byte) error
	HandlePeersGossip(ctx context.Context, from ids.NodeID, payload []byte) error
}

// connection is one peer's handshake-negotiated session state.
type connection struct {
	peer    peer.ID
	session AEADSession
}

// Adapter is the concrete network adapter: it owns the per-peer
// sessions, the current topology (handshake admission gate), and
// dispatches inbound frames to Handler.
type Adapter struct {
	mu sync.RWMutex

	self ids.NodeID
	kex  KeyExchanger
	log  log.Logger

	topology map[ids.NodeID]struct{}
	conns    map[ids.NodeID]*connection

	transport Transport
	handler   Handler
}

// Transport is the raw byte-oriented send primitive an Adapter runs
// over — an in-process transport for tests, or a real socket/QUIC/p2p
// transport in production (the latter grounded on github.com/luxfi/p2p's
// connection model, out of scope to implement here).
type Transport interface {
	Send(ctx context.Context, to ids.NodeID, frame []byte) error
}

// NewAdapter constructs an Adapter. handler is late-bound via SetHandler
// since the components it dispatches to (sumeragi.Engine, blocksync,
// txqueue gossiper, peergossip) are constructed after the adapter in
// typical wiring order.
func NewAdapter(self ids.NodeID, kex KeyExchanger, transport Transport, logger log.Logger) *Adapter {
	return &Adapter{
		self:      self,
		kex:       kex,
		log:       logger,
		topology:  make(map[ids.NodeID]struct{}),
		conns:     make(map[ids.NodeID]*connection),
		transport: transport,
	}
}

// SetHandler binds the dispatch target.
func (a *Adapter) SetHandler(h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// SetTopology updates the peer set handshakes are admitted against;
// connections for peers no longer in it are dropped.
func (a *Adapter) SetTopology(peers []peer.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.topology = make(map[ids.NodeID]struct{}, len(peers))
	for _, p := range peers {
		a.topology[p.NodeID()] = struct{}{}
	}
	for id := range a.conns {
		if _, ok := a.topology[id]; !ok {
			delete(a.conns, id)
		}
	}
}

// Handshake establishes a session with remote, rejecting it if remote
// is not in the current topology (spec.md §4.8).
func (a *Adapter) Handshake(ctx context.Context, remote peer.ID) error {
	a.mu.RLock()
	_, admitted := a.topology[remote.NodeID()]
	a.mu.RUnlock()
	if !admitted {
		return fmt.Errorf("network: peer %s not in current topology, rejecting handshake", remote.NodeID())
	}

	session, err := a.kex.Exchange(ctx, remote)
	if err != nil {
		return fmt.Errorf("network: handshake with %s failed: %w", remote.NodeID(), err)
	}

	a.mu.Lock()
	a.conns[remote.NodeID()] = &connection{peer: remote, session: session}
	a.mu.Unlock()
	return nil
}

// OnlinePeers returns the peers currently connected (handshake
// completed).
func (a *Adapter) OnlinePeers() []peer.ID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]peer.ID, 0, len(a.conns))
	for _, c := range a.conns {
		out = append(out, c.peer)
	}
	return out
}

// send frames, seals (if a session exists), and transmits a payload.
func (a *Adapter) send(ctx context.Context, to ids.NodeID, tag MessageTag, payload []byte) error {
	frame, err := Encode(Frame{Tag: tag, Payload: payload})
	if err != nil {
		return err
	}

	a.mu.RLock()
	conn, ok := a.conns[to]
	a.mu.RUnlock()
	if ok {
		sealed, err := conn.session.Seal(frame)
		if err != nil {
			return fmt.Errorf("network: seal failed for %s: %w", to, err)
		}
		frame = sealed
	}
	return a.transport.Send(ctx, to, frame)
}

// Broadcast sends a tagged payload to every online peer.
func (a *Adapter) Broadcast(ctx context.Context, tag MessageTag, payload []byte) error {
	for _, p := range a.OnlinePeers() {
		if err := a.send(ctx, p.NodeID(), tag, payload); err != nil {
			a.log.Debug("network: broadcast to peer failed", "peer", p.NodeID(), "err", err)
		}
	}
	return nil
}

// Post sends a tagged payload to one peer.
func (a *Adapter) Post(ctx context.Context, to ids.NodeID, tag MessageTag, payload []byte) error {
	return a.send(ctx, to, tag, payload)
}

// Deliver is called by the Transport when a frame (already
// transport-received, still possibly sealed) arrives from sender. It
// opens the session (if any), decodes the frame, and dispatches by tag.
// A frame failing to decode aborts processing of just that frame; a
// frame exceeding MaxFrameSize also drops the sender's connection entry,
// so the peer has to connect again.
func (a *Adapter) Deliver(ctx context.Context, sender ids.NodeID, raw []byte) error {
	a.mu.RLock()
	conn, ok := a.conns[sender]
	a.mu.RUnlock()
	if ok {
		opened, err := conn.session.Open(raw)
		if err != nil {
			return fmt.Errorf("network: failed to open frame from %s: %w", sender, err)
		}
		raw = opened
	}

	frame, _, err := Decode(raw)
	if err != nil {
		if err == ErrFrameTooLarge {
			a.mu.Lock()
			delete(a.conns, sender)
			a.mu.Unlock()
		}
		return err
	}

	a.mu.RLock()
	h := a.handler
	a.mu.RUnlock()
	if h == nil {
		return fmt.Errorf("network: no handler bound")
	}

	switch frame.Tag {
	case TagSumeragi:
		return h.HandleSumeragi(ctx, sender, frame.Payload)
	case TagBlockSync:
		return h.HandleBlockSync(ctx, sender, frame.Payload)
	case TagTransactionGossip:
		return h.HandleTransactionGossip(ctx, sender, frame.Payload)
	case TagPeersGossip:
		return h.HandlePeersGossip(ctx, sender, frame.Payload)
	default:
		return fmt.Errorf("network: unknown message tag %d", frame.Tag)
	}
}
