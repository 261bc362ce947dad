package quorum_test

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sumeragi/quorum"
)

func nodeID(b byte) ids.NodeID {
	var n ids.NodeID
	n[0] = b
	return n
}

func TestTallyAchievesAtThreshold(t *testing.T) {
	require := require.New(t)
	tally := quorum.New(3)

	require.False(tally.Add(nodeID(1)))
	require.False(tally.Check().Achieved)

	require.False(tally.Add(nodeID(2)))
	require.False(tally.Check().Achieved)

	require.True(tally.Add(nodeID(3)))
	result := tally.Check()
	require.True(result.Achieved)
	require.Equal(3, result.Count)
	require.Equal(3, result.Threshold)
	require.Equal([]ids.NodeID{nodeID(1), nodeID(2), nodeID(3)}, result.Signers)
}

func TestTallyDedupsRepeatSigner(t *testing.T) {
	require := require.New(t)
	tally := quorum.New(2)

	require.False(tally.Add(nodeID(1)))
	require.False(tally.Add(nodeID(1))) // repeat vote, not counted again
	require.Equal(1, tally.Len())

	require.True(tally.Add(nodeID(2)))
	require.Equal(2, tally.Len())
}

func TestTallyAddAfterAchievedReturnsFalse(t *testing.T) {
	require := require.New(t)
	tally := quorum.New(1)

	require.True(tally.Add(nodeID(1)))
	require.False(tally.Add(nodeID(2))) // already achieved before this vote
}

func TestTallyReset(t *testing.T) {
	require := require.New(t)
	tally := quorum.New(1)
	tally.Add(nodeID(1))
	require.True(tally.Check().Achieved)

	tally.Reset()
	require.False(tally.Check().Achieved)
	require.Equal(0, tally.Len())
	require.False(tally.Contains(nodeID(1)))
}

func TestTallySetThreshold(t *testing.T) {
	require := require.New(t)
	tally := quorum.New(5)
	tally.Add(nodeID(1))
	require.False(tally.Check().Achieved)

	tally.SetThreshold(1)
	require.True(tally.Check().Achieved)
}
