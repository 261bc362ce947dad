package config_test

import (
	"testing"
	"time"

	"github.com/luxfi/crypto/bls"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sumeragi/config"
	"github.com/luxfi/sumeragi/peer"
)

func testPeers(t *testing.T, n int) []peer.ID {
	t.Helper()
	out := make([]peer.ID, n)
	for i := range out {
		sk, err := bls.NewSecretKey()
		require.NoError(t, err)
		out[i] = peer.New("addr", sk.PublicKey())
	}
	return out
}

func TestBuilderDefaults(t *testing.T) {
	cfg, err := config.NewBuilder().WithTrustedPeers(testPeers(t, 4)).Build()
	require.NoError(t, err)
	require.Equal(t, int64(config.DefaultBlockTimeMS), cfg.BlockTimeMS)
	require.Equal(t, int64(config.DefaultCommitTimeLimitMS), cfg.CommitTimeLimitMS)
	require.False(t, cfg.IsTestMode())
	require.Equal(t, int64(config.DefaultBlockTimeMS+config.DefaultCommitTimeLimitMS), cfg.PipelineTimeMS())
}

func TestBuilderRejectsEmptyTrustedPeers(t *testing.T) {
	_, err := config.NewBuilder().Build()
	require.Error(t, err)
}

func TestBuilderRejectsNonPositiveBlockTime(t *testing.T) {
	_, err := config.NewBuilder().WithBlockTime(0).WithTrustedPeers(testPeers(t, 1)).Build()
	require.Error(t, err)
}

func TestBuilderRejectsCommitLimitBelowBlockTime(t *testing.T) {
	_, err := config.NewBuilder().
		WithBlockTime(5 * time.Second).
		WithCommitTimeLimit(1 * time.Second).
		WithTrustedPeers(testPeers(t, 1)).
		Build()
	require.Error(t, err)
}

func TestBuilderWithGossip(t *testing.T) {
	cfg, err := config.NewBuilder().
		WithGossip(200, 500*time.Millisecond).
		WithTrustedPeers(testPeers(t, 1)).
		Build()
	require.NoError(t, err)
	require.Equal(t, 200, cfg.GossipBatchSize)
	require.Equal(t, int64(500), cfg.GossipPeriodMS)
}

func TestNewTestConfigEnablesTestMode(t *testing.T) {
	cfg, err := config.NewTestConfig(testPeers(t, 1))
	require.NoError(t, err)
	require.True(t, cfg.IsTestMode())
}

func TestBuilderRejectsInvalidQueueCapacity(t *testing.T) {
	_, err := config.NewBuilder().WithQueueCapacity(10, 20).WithTrustedPeers(testPeers(t, 1)).Build()
	require.Error(t, err)
}
