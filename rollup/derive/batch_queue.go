package derive

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// batchQueueProvider is whatever BatchQueue pulls SingleBatches from.
type batchQueueProvider interface {
	Origin() eth.L1BlockRef
	NextBatch(parentHash common.Hash) (*SingleBatch, error)
	Flush()
}

// BatchQueue is the pre-Holocene batch multiplexer. It buffers batches
// as they arrive, admits only those satisfying the single-batch
// admissibility invariants relative to the current L2 safe head, and
// when the sequencing window elapses without an admissible batch for the
// current epoch, force-includes an empty batch so derivation always
// makes progress. Grounded on kona's stages::batch_queue
// (l1_blocks/batches tracking, check_batch admission, sequencing-window
// force inclusion), generalized here into a pull-one-step API.
type BatchQueue struct {
	cfg  *rollup.Config
	prev batchQueueProvider

	l1Blocks []eth.L1BlockRef
	pending  []*SingleBatch
}

func NewBatchQueue(cfg *rollup.Config, prev batchQueueProvider) *BatchQueue {
	return &BatchQueue{cfg: cfg, prev: prev}
}

func (q *BatchQueue) Origin() eth.L1BlockRef { return q.prev.Origin() }

// AddL1Block records an L1 block as part of the queue's sequencing
// window, called by the driver each time the L1 traversal stage advances.
func (q *BatchQueue) AddL1Block(ref eth.L1BlockRef) {
	q.l1Blocks = append(q.l1Blocks, ref)
}

// NextBatch returns the next admissible SingleBatch to apply on top of
// l2SafeHead, within epoch. If the sequencing window for epoch has
// elapsed without an admissible batch arriving, an empty force-included
// batch is synthesized instead, as the sequencing-window fallback rule
// requires.
func (q *BatchQueue) NextBatch(l2SafeHead eth.L2BlockRef, epoch eth.L1BlockRef) (*SingleBatch, error) {
	if err := q.fill(l2SafeHead.Hash); err != nil {
		return nil, err
	}

	for i, b := range q.pending {
		if q.admissible(b, l2SafeHead, epoch) {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return b, nil
		}
	}

	if q.windowElapsed(epoch) {
		return &SingleBatch{
			ParentHash:   l2SafeHead.Hash,
			EpochNum:     epoch.Number,
			EpochHash:    epoch.Hash,
			Timestamp:    l2SafeHead.Time + q.cfg.BlockTime,
			Transactions: nil,
		}, nil
	}
	return nil, NotEnoughData
}

func (q *BatchQueue) fill(parentHash common.Hash) error {
	for {
		b, err := q.prev.NextBatch(parentHash)
		if err != nil {
			if IsTemporary(err) {
				return nil
			}
			return err
		}
		q.pending = append(q.pending, b)
	}
}

// admissible applies the single-batch admissibility invariants: parent
// continuity, a non-decreasing epoch number within
// [l1_origin, l1_origin+max_seq_drift], exact block-time spacing, and
// epoch-number agreement whenever the L1 origin has advanced.
func (q *BatchQueue) admissible(b *SingleBatch, parent eth.L2BlockRef, epoch eth.L1BlockRef) bool {
	if b.ParentHash != parent.Hash {
		return false
	}
	if b.Timestamp != parent.Time+q.cfg.BlockTime {
		return false
	}
	if b.EpochNum < parent.L1Origin.Number {
		return false
	}
	if b.EpochNum > epoch.Number+q.cfg.MaxSequencerDrift {
		return false
	}
	if epoch.Number != parent.L1Origin.Number && b.EpochNum != epoch.Number {
		return false
	}
	return true
}

// windowElapsed reports whether seq_window_size L1 blocks have passed
// since epoch without the queue having accumulated an admissible batch.
func (q *BatchQueue) windowElapsed(epoch eth.L1BlockRef) bool {
	for _, ref := range q.l1Blocks {
		if ref.Number >= epoch.Number+q.cfg.SeqWindowSize {
			return true
		}
	}
	return false
}

func (q *BatchQueue) Flush() {
	q.pending = nil
	q.prev.Flush()
}

func (q *BatchQueue) Reset() error {
	q.l1Blocks = nil
	q.pending = nil
	return EOF
}
