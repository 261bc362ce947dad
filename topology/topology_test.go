package topology_test

import (
	"testing"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sumeragi/peer"
	"github.com/luxfi/sumeragi/topology"
)

// testPeers builds one peer.ID per address, each with a freshly generated
// key so NodeID-based comparisons are distinct. Mirrors the Rust fixture's
// peers!["A", "B", "C", "D", "E", "F", "G"].
func testPeers(t *testing.T, addresses ...string) []peer.ID {
	t.Helper()
	out := make([]peer.ID, len(addresses))
	for i, addr := range addresses {
		sk, err := bls.NewSecretKey()
		require.NoError(t, err)
		out[i] = peer.New(addr, sk.PublicKey())
	}
	return out
}

func addresses(peers []peer.ID) []string {
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.Address
	}
	return out
}

func nodeIDs(peers []peer.ID) []ids.NodeID {
	out := make([]ids.NodeID, len(peers))
	for i, p := range peers {
		out[i] = p.NodeID()
	}
	return out
}

func nodeIDStrings(peers []peer.ID) []string {
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.NodeID().String()
	}
	return out
}

func toNodeIDStrings(ns []ids.NodeID) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.String()
	}
	return out
}

func sevenPeerTopology(t *testing.T) ([]peer.ID, topology.Topology) {
	t.Helper()
	peers := testPeers(t, "A", "B", "C", "D", "E", "F", "G")
	return peers, topology.New(peers)
}

func TestMaxFaultsAndMinVotes(t *testing.T) {
	_, topo := sevenPeerTopology(t)
	require.Equal(t, 2, topo.MaxFaults())
	require.Equal(t, 5, topo.MinVotesForCommit())
	require.True(t, topo.IsConsensusRequired())
}

func TestRole(t *testing.T) {
	peers, topo := sevenPeerTopology(t)
	require.Equal(t, topology.RoleLeader, topo.Role(peers[0]))
	require.Equal(t, topology.RoleValidatingPeer, topo.Role(peers[1]))
	require.Equal(t, topology.RoleValidatingPeer, topo.Role(peers[3]))
	require.Equal(t, topology.RoleProxyTail, topo.Role(peers[4]))
	require.Equal(t, topology.RoleObservingPeer, topo.Role(peers[5]))
	require.Equal(t, topology.RoleObservingPeer, topo.Role(peers[6]))
}

// TestRoleDegenerateThreePeers locks in spec.md's testable scenario #6:
// with n=3, position 1 is Validating and position 2 is ProxyTail, not
// the general-formula answer the f>0 range check would otherwise give.
func TestRoleDegenerateThreePeers(t *testing.T) {
	peers := testPeers(t, "A", "B", "C")
	topo := topology.New(peers)
	require.Equal(t, 0, topo.MaxFaults())
	require.Equal(t, 1, topo.MinVotesForCommit())

	require.Equal(t, topology.RoleLeader, topo.Role(peers[0]))
	require.Equal(t, topology.RoleValidatingPeer, topo.Role(peers[1]))
	require.Equal(t, topology.RoleProxyTail, topo.Role(peers[2]))
}

func TestRoleDegenerateTwoPeers(t *testing.T) {
	peers := testPeers(t, "A", "B")
	topo := topology.New(peers)
	require.Equal(t, topology.RoleLeader, topo.Role(peers[0]))
	require.Equal(t, topology.RoleProxyTail, topo.Role(peers[1]))
}

func TestRotateAll(t *testing.T) {
	_, topo := sevenPeerTopology(t)
	rotated := topo.RotateAll()
	require.Equal(t, []string{"B", "C", "D", "E", "F", "G", "A"}, addresses(rotated.Peers()))
	// original is untouched
	require.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G"}, addresses(topo.Peers()))
}

func TestRotateSetA(t *testing.T) {
	_, topo := sevenPeerTopology(t)
	rotated := topo.RotateSetA()
	require.Equal(t, []string{"B", "C", "D", "E", "A", "F", "G"}, addresses(rotated.Peers()))
}

func TestLiftUpPeers(t *testing.T) {
	peers, topo := sevenPeerTopology(t)
	// lift up B, C, E, G
	lifted := topo.LiftUpPeers([]peer.ID{peers[1], peers[2], peers[4], peers[6]})
	require.Equal(t, []string{"B", "C", "E", "G", "A", "D", "F"}, addresses(lifted.Peers()))
}

func TestUpdatePeerList(t *testing.T) {
	peers, topo := sevenPeerTopology(t)
	h := testPeers(t, "H")
	newPeers := []peer.ID{peers[0], peers[5], peers[2], h[0]}
	updated := topo.UpdatePeerList(newPeers)
	require.Equal(t, []string{"A", "C", "F", "H"}, addresses(updated.Peers()))
}

func TestFilterByRolesDegenerateTwoPeers(t *testing.T) {
	peers := testPeers(t, "A", "B")
	topo := topology.New(peers)
	require.Equal(t, 0, topo.MaxFaults())
	require.Equal(t, 1, topo.MinVotesForCommit())

	all := nodeIDs(peers)

	leader := topo.FilterByRoles([]topology.Role{topology.RoleLeader}, all)
	require.Equal(t, []string{peers[0].NodeID().String()}, toNodeIDStrings(leader))

	proxyTail := topo.FilterByRoles([]topology.Role{topology.RoleProxyTail}, all)
	require.Equal(t, []string{peers[1].NodeID().String()}, toNodeIDStrings(proxyTail))

	validating := topo.FilterByRoles([]topology.Role{topology.RoleValidatingPeer}, all)
	require.Equal(t, []string{peers[1].NodeID().String()}, toNodeIDStrings(validating))
}

func TestFilterByRolesSevenPeers(t *testing.T) {
	peers, topo := sevenPeerTopology(t)
	all := nodeIDs(peers)

	validating := topo.FilterByRoles([]topology.Role{topology.RoleValidatingPeer}, all)
	require.ElementsMatch(t, nodeIDStrings(peers[1:4]), toNodeIDStrings(validating))

	proxyTail := topo.FilterByRoles([]topology.Role{topology.RoleProxyTail}, all)
	require.Equal(t, nodeIDStrings(peers[4:5]), toNodeIDStrings(proxyTail))

	observing := topo.FilterByRoles([]topology.Role{topology.RoleObservingPeer}, all)
	require.ElementsMatch(t, nodeIDStrings(peers[5:]), toNodeIDStrings(observing))
}
