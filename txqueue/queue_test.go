package txqueue_test

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/sumeragi/txqueue"
)

type fakeView struct {
	now  int64
	seen map[ids.ID]struct{}
}

func (v fakeView) CurrentTimeMS() int64         { return v.now }
func (v fakeView) HasTransaction(h ids.ID) bool { _, ok := v.seen[h]; return ok }

func txHash(b byte) ids.ID {
	var id ids.ID
	id[0] = b
	return id
}

func submitter(b byte) ids.NodeID {
	var n ids.NodeID
	n[0] = b
	return n
}

func TestNextNonceWraps(t *testing.T) {
	require.Equal(t, uint32(1), txqueue.NextNonce(txqueue.NonceMax))
	require.Equal(t, uint32(2), txqueue.NextNonce(1))
}

func TestAddRejectsZeroNonce(t *testing.T) {
	q := txqueue.New(10, 10)
	err := q.Add(txqueue.AcceptedTransaction{Hash: txHash(1), Submitter: submitter(1), Nonce: 0})
	require.ErrorIs(t, err, txqueue.ErrZeroNonce)
}

func TestAddEnforcesNonceMonotonicity(t *testing.T) {
	q := txqueue.New(10, 10)
	s := submitter(1)
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(1), Submitter: s, Nonce: 1}))
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(2), Submitter: s, Nonce: 2}))

	err := q.Add(txqueue.AcceptedTransaction{Hash: txHash(3), Submitter: s, Nonce: 4})
	require.ErrorIs(t, err, txqueue.ErrNonceNotMonotonic)
}

func TestAddRejectsOverCapacity(t *testing.T) {
	q := txqueue.New(1, 10)
	s := submitter(1)
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(1), Submitter: s, Nonce: 1}))
	err := q.Add(txqueue.AcceptedTransaction{Hash: txHash(2), Submitter: submitter(2), Nonce: 1})
	require.ErrorIs(t, err, txqueue.ErrQueueFull)
}

func TestCollectForBlockOrdersBySubmission(t *testing.T) {
	q := txqueue.New(10, 10)
	s1, s2 := submitter(1), submitter(2)
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(1), Submitter: s1, Nonce: 1, CreationTimeMS: 100}))
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(2), Submitter: s2, Nonce: 1, CreationTimeMS: 100}))
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(3), Submitter: s1, Nonce: 2, CreationTimeMS: 100}))

	view := fakeView{now: 200, seen: map[ids.ID]struct{}{}}
	batch := q.CollectForBlock(view, 10)
	require.Len(t, batch, 3)
	require.Equal(t, txHash(1), batch[0].Hash)
	require.Equal(t, txHash(2), batch[1].Hash)
	require.Equal(t, txHash(3), batch[2].Hash)
}

func TestCollectForBlockRespectsCapAndTTL(t *testing.T) {
	q := txqueue.New(10, 10)
	s := submitter(1)
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(1), Submitter: s, Nonce: 1, CreationTimeMS: 0, TTLMS: 50}))
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(2), Submitter: s, Nonce: 2, CreationTimeMS: 100, TTLMS: 1000}))

	view := fakeView{now: 200, seen: map[ids.ID]struct{}{}} // tx1 expired (0+50 < 200)
	batch := q.CollectForBlock(view, 10)
	require.Len(t, batch, 1)
	require.Equal(t, txHash(2), batch[0].Hash)
	require.Equal(t, 1, q.Len()) // expired tx dropped from queue too
}

func TestCollectForBlockExcludesAlreadyChained(t *testing.T) {
	q := txqueue.New(10, 10)
	s := submitter(1)
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(1), Submitter: s, Nonce: 1}))

	view := fakeView{now: 0, seen: map[ids.ID]struct{}{txHash(1): {}}}
	batch := q.CollectForBlock(view, 10)
	require.Empty(t, batch)
}

func TestRemoveDropsCommittedTransactions(t *testing.T) {
	q := txqueue.New(10, 10)
	s := submitter(1)
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(1), Submitter: s, Nonce: 1}))
	require.NoError(t, q.Add(txqueue.AcceptedTransaction{Hash: txHash(2), Submitter: s, Nonce: 2}))

	q.Remove([]ids.ID{txHash(1)})
	require.Equal(t, 1, q.Len())
}
