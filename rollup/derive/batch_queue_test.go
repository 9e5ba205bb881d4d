package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// fakeBatchSource feeds a fixed slice of SingleBatches to a BatchQueue
// through the batchQueueProvider surface, ignoring the requested parent
// hash (the tests control admissibility via the batch's own ParentHash).
type fakeBatchSource struct {
	origin  eth.L1BlockRef
	batches []*SingleBatch
	next    int
	flushed bool
}

func (s *fakeBatchSource) Origin() eth.L1BlockRef { return s.origin }

func (s *fakeBatchSource) NextBatch(common.Hash) (*SingleBatch, error) {
	if s.next >= len(s.batches) {
		return nil, EOF
	}
	b := s.batches[s.next]
	s.next++
	return b, nil
}

func (s *fakeBatchSource) Flush() { s.flushed = true }

func TestBatchQueueReturnsAdmissibleBatch(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, MaxSequencerDrift: 5}
	parent := eth.L2BlockRef{Hash: common.HexToHash("0xaa"), Time: 1000, L1Origin: eth.BlockID{Number: 50}}
	epoch := eth.L1BlockRef{Number: 50}

	b := &SingleBatch{ParentHash: parent.Hash, Timestamp: parent.Time + cfg.BlockTime, EpochNum: epoch.Number}
	src := &fakeBatchSource{batches: []*SingleBatch{b}}
	q := NewBatchQueue(cfg, src)

	got, err := q.NextBatch(parent, epoch)
	require.NoError(t, err)
	require.Same(t, b, got)
}

// TestBatchQueueForceIncludesEmptyBatchOnceWindowElapses covers the
// sequencing-window fallback: once SeqWindowSize L1 blocks have passed
// with no admissible batch buffered, NextBatch must synthesize an empty
// one rather than stall derivation.
func TestBatchQueueForceIncludesEmptyBatchOnceWindowElapses(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, MaxSequencerDrift: 5, SeqWindowSize: 10}
	parent := eth.L2BlockRef{Hash: common.HexToHash("0xaa"), Time: 1000, L1Origin: eth.BlockID{Number: 50}}
	epoch := eth.L1BlockRef{Number: 50}

	src := &fakeBatchSource{}
	q := NewBatchQueue(cfg, src)
	q.AddL1Block(eth.L1BlockRef{Number: epoch.Number + cfg.SeqWindowSize})

	got, err := q.NextBatch(parent, epoch)
	require.NoError(t, err)
	require.Empty(t, got.Transactions)
	require.Equal(t, parent.Hash, got.ParentHash)
	require.Equal(t, epoch.Number, got.EpochNum)
}

func TestBatchQueueReturnsNotEnoughDataBeforeWindowElapses(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, MaxSequencerDrift: 5, SeqWindowSize: 10}
	parent := eth.L2BlockRef{Hash: common.HexToHash("0xaa"), Time: 1000, L1Origin: eth.BlockID{Number: 50}}
	epoch := eth.L1BlockRef{Number: 50}

	src := &fakeBatchSource{}
	q := NewBatchQueue(cfg, src)
	q.AddL1Block(eth.L1BlockRef{Number: epoch.Number + cfg.SeqWindowSize - 1})

	_, err := q.NextBatch(parent, epoch)
	require.ErrorIs(t, err, NotEnoughData)
}

func TestBatchQueueFlushPropagatesToPreviousStage(t *testing.T) {
	src := &fakeBatchSource{}
	q := NewBatchQueue(&rollup.Config{}, src)
	q.pending = []*SingleBatch{{}}

	q.Flush()
	require.Empty(t, q.pending)
	require.True(t, src.flushed)
}
