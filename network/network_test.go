package network_test

import (
	"context"
	"testing"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sumeragi/network"
	lognoop "github.com/luxfi/sumeragi/log"
	"github.com/luxfi/sumeragi/peer"
)

type plaintextSession struct{}

func (plaintextSession) Seal(p []byte) ([]byte, error) { return p, nil }
func (plaintextSession) Open(c []byte) ([]byte, error) { return c, nil }

type noopKex struct{}

func (noopKex) Exchange(ctx context.Context, remote peer.ID) (network.AEADSession, error) {
	return plaintextSession{}, nil
}

type recordingHandler struct {
	sumeragi []string
	gossip   []string
}

func (h *recordingHandler) HandleSumeragi(ctx context.Context, from ids.NodeID, payload []byte) error {
	h.sumeragi = append(h.sumeragi, string(payload))
	return nil
}
func (h *recordingHandler) HandleBlockSync(ctx context.Context, from ids.NodeID, payload []byte) error {
	return nil
}
func (h *recordingHandler) HandleTransactionGossip(ctx context.Context, from ids.NodeID, payload []byte) error {
	return nil
}
func (h *recordingHandler) HandlePeersGossip(ctx context.Context, from ids.NodeID, payload []byte) error {
	h.gossip = append(h.gossip, string(payload))
	return nil
}

func testPeer(t *testing.T, addr string) peer.ID {
	t.Helper()
	sk, err := bls.NewSecretKey()
	require.NoError(t, err)
	return peer.New(addr, sk.PublicKey())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame, err := network.Encode(network.Frame{Tag: network.TagPeersGossip, Payload: []byte("hello")})
	require.NoError(t, err)

	decoded, n, err := network.Decode(frame)
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
	require.Equal(t, network.TagPeersGossip, decoded.Tag)
	require.Equal(t, []byte("hello"), decoded.Payload)
}

func TestDecodeRejectsOversizedLength(t *testing.T) {
	frame, err := network.Encode(network.Frame{Tag: network.TagSumeragi, Payload: []byte("x")})
	require.NoError(t, err)
	frame[0], frame[1], frame[2], frame[3] = 0xFF, 0xFF, 0xFF, 0xFF
	_, _, err = network.Decode(frame)
	require.ErrorIs(t, err, network.ErrFrameTooLarge)
}

func TestHandshakeRejectsPeerOutsideTopology(t *testing.T) {
	a := testPeer(t, "a")
	b := testPeer(t, "b")
	shared := network.NewInProcessTransport()

	adapter := network.NewAdapter(a.NodeID(), noopKex{}, network.NewBoundTransport(shared, a.NodeID()), lognoop.NewNoOpLogger())
	adapter.SetTopology([]peer.ID{a}) // b is not trusted

	err := adapter.Handshake(context.Background(), b)
	require.Error(t, err)
}

func TestBroadcastDispatchesByTag(t *testing.T) {
	a := testPeer(t, "a")
	b := testPeer(t, "b")
	shared := network.NewInProcessTransport()

	adapterA := network.NewAdapter(a.NodeID(), noopKex{}, network.NewBoundTransport(shared, a.NodeID()), lognoop.NewNoOpLogger())
	adapterB := network.NewAdapter(b.NodeID(), noopKex{}, network.NewBoundTransport(shared, b.NodeID()), lognoop.NewNoOpLogger())
	shared.Register(a.NodeID(), adapterA)
	shared.Register(b.NodeID(), adapterB)

	adapterA.SetTopology([]peer.ID{a, b})
	adapterB.SetTopology([]peer.ID{a, b})
	require.NoError(t, adapterA.Handshake(context.Background(), b))
	require.NoError(t, adapterB.Handshake(context.Background(), a))

	handlerB := &recordingHandler{}
	adapterB.SetHandler(handlerB)

	require.NoError(t, adapterA.Broadcast(context.Background(), network.TagPeersGossip, []byte("addrs")))
	require.Len(t, handlerB.gossip, 1)
	require.Equal(t, "addrs", handlerB.gossip[0])
}
