package viewchange_test

import (
	"testing"

	"github.com/luxfi/crypto/bls"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sumeragi/peer"
	"github.com/luxfi/sumeragi/topology"
	"github.com/luxfi/sumeragi/viewchange"
)

func testPeers(t *testing.T, n int) []peer.ID {
	t.Helper()
	out := make([]peer.ID, n)
	for i := 0; i < n; i++ {
		sk, err := bls.NewSecretKey()
		require.NoError(t, err)
		out[i] = peer.New(string(rune('A'+i)), sk.PublicKey())
	}
	return out
}

func TestProofCompleteness(t *testing.T) {
	require := require.New(t)
	peers := testPeers(t, 7) // A..G, min_votes_for_commit = 5, required = 4
	topo := topology.New(peers)

	proof := viewchange.Proof{Height: 1, ViewIndex: 0, Reason: viewchange.LeaderUnresponsive}
	require.False(proof.IsComplete(topo))

	// B..E are ValidatingPeer/ProxyTail (positions 1-4); that's exactly
	// the 4 non-Leader signatures required.
	for _, p := range peers[1:5] {
		proof.Signatures = append(proof.Signatures, viewchange.Signature{Signer: p.NodeID()})
	}
	require.True(proof.IsComplete(topo))
}

func TestProofCompletenessIgnoresLeaderSignature(t *testing.T) {
	require := require.New(t)
	peers := testPeers(t, 7)
	topo := topology.New(peers)

	proof := viewchange.Proof{Height: 1, ViewIndex: 0, Reason: viewchange.LeaderUnresponsive}
	// Leader's own signature never counts toward non-Leader completeness.
	proof.Signatures = append(proof.Signatures, viewchange.Signature{Signer: peers[0].NodeID()})
	for _, p := range peers[1:4] {
		proof.Signatures = append(proof.Signatures, viewchange.Signature{Signer: p.NodeID()})
	}
	require.False(proof.IsComplete(topo))
}

func TestProofCompletenessDedupsRepeatSigner(t *testing.T) {
	require := require.New(t)
	peers := testPeers(t, 7)
	topo := topology.New(peers)

	proof := viewchange.Proof{Height: 1, ViewIndex: 0, Reason: viewchange.LeaderUnresponsive}
	for i := 0; i < 2; i++ {
		proof.Signatures = append(proof.Signatures, viewchange.Signature{Signer: peers[1].NodeID()})
	}
	for _, p := range peers[2:5] {
		proof.Signatures = append(proof.Signatures, viewchange.Signature{Signer: p.NodeID()})
	}
	// distinct signers: peers[1],peers[2],peers[3],peers[4] == 4, threshold met
	require.True(proof.IsComplete(topo))
}

func completeProofAt(peers []peer.ID, topo topology.Topology, height uint64, viewIndex int, reason viewchange.Reason) viewchange.Proof {
	rotated := topo
	for i := 0; i < viewIndex; i++ {
		rotated = rotated.RotateAll()
	}
	required := rotated.MinVotesForCommit() - 1
	proof := viewchange.Proof{Height: height, ViewIndex: viewIndex, Reason: reason}
	nonLeader := rotated.Peers()[1:]
	for i := 0; i < required && i < len(nonLeader); i++ {
		proof.Signatures = append(proof.Signatures, viewchange.Signature{Signer: nonLeader[i].NodeID()})
	}
	return proof
}

func TestChainAppendAndReset(t *testing.T) {
	require := require.New(t)
	peers := testPeers(t, 7)
	topo := topology.New(peers)
	chain := viewchange.NewChain()

	proof0 := completeProofAt(peers, topo, 1, 0, viewchange.LeaderUnresponsive)
	require.NoError(chain.Append(proof0, 1, topo))
	require.Equal(1, chain.Len())

	rotated := topo.RotateAll()
	proof1 := completeProofAt(peers, topo, 1, 1, viewchange.ProxyTailUnresponsive)
	require.NoError(chain.Append(proof1, 1, rotated))
	require.Equal(2, chain.Len())

	chain.ResetOnCommit()
	require.Equal(0, chain.Len())
}

func TestChainAppendRejectsWrongHeight(t *testing.T) {
	require := require.New(t)
	peers := testPeers(t, 7)
	topo := topology.New(peers)
	chain := viewchange.NewChain()

	proof := completeProofAt(peers, topo, 1, 0, viewchange.LeaderUnresponsive)
	err := chain.Append(proof, 2, topo)
	require.Error(err)
	require.Equal(0, chain.Len())
}

func TestChainAppendRejectsWrongViewIndex(t *testing.T) {
	require := require.New(t)
	peers := testPeers(t, 7)
	topo := topology.New(peers)
	chain := viewchange.NewChain()

	proof := completeProofAt(peers, topo, 1, 1, viewchange.LeaderUnresponsive) // should be 0
	err := chain.Append(proof, 1, topo)
	require.Error(err)
}

func TestChainReconcileAcceptsLongestValidPrefix(t *testing.T) {
	require := require.New(t)
	peers := testPeers(t, 7)
	topo := topology.New(peers)
	chain := viewchange.NewChain()

	proof0 := completeProofAt(peers, topo, 1, 0, viewchange.LeaderUnresponsive)
	invalidProof1 := viewchange.Proof{Height: 1, ViewIndex: 1, Reason: viewchange.ProxyTailUnresponsive} // no signatures

	chain.Reconcile([]viewchange.Proof{proof0, invalidProof1}, 1, topo)
	require.Equal(1, chain.Len())
}
