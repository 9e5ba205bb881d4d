package derive

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// BatchValidator is the post-Holocene batch multiplexer: unlike
// BatchQueue it does not reorder or buffer batches, it admits the next
// batch from the stream only if it satisfies the admissibility
// invariants exactly, in strict arrival order, and rejects (drops) it
// otherwise — the sequencing-window force-inclusion fallback still
// applies when the stream is empty and the window has elapsed. Grounded
// on op-node's Holocene batch validator semantics, generalizing kona's
// batch_queue.rs structure to strict-admission rather than buffered.
type BatchValidator struct {
	cfg  *rollup.Config
	prev batchQueueProvider

	l1Blocks []eth.L1BlockRef
}

func NewBatchValidator(cfg *rollup.Config, prev batchQueueProvider) *BatchValidator {
	return &BatchValidator{cfg: cfg, prev: prev}
}

func (v *BatchValidator) Origin() eth.L1BlockRef { return v.prev.Origin() }

func (v *BatchValidator) AddL1Block(ref eth.L1BlockRef) { v.l1Blocks = append(v.l1Blocks, ref) }

func (v *BatchValidator) NextBatch(l2SafeHead eth.L2BlockRef, epoch eth.L1BlockRef) (*SingleBatch, error) {
	b, err := v.prev.NextBatch(l2SafeHead.Hash)
	if err != nil {
		if IsTemporary(err) && v.windowElapsed(epoch) {
			return &SingleBatch{
				ParentHash: l2SafeHead.Hash,
				EpochNum:   epoch.Number,
				EpochHash:  epoch.Hash,
				Timestamp:  l2SafeHead.Time + v.cfg.BlockTime,
			}, nil
		}
		return nil, err
	}
	if !v.admissible(b, l2SafeHead, epoch) {
		v.prev.Flush()
		return nil, NewResetError(errInadmissibleBatch(b, l2SafeHead))
	}
	return b, nil
}

func (v *BatchValidator) admissible(b *SingleBatch, parent eth.L2BlockRef, epoch eth.L1BlockRef) bool {
	if b.ParentHash != parent.Hash {
		return false
	}
	if b.Timestamp != parent.Time+v.cfg.BlockTime {
		return false
	}
	if b.EpochNum < parent.L1Origin.Number || b.EpochNum > epoch.Number+v.cfg.MaxSequencerDrift {
		return false
	}
	if epoch.Number != parent.L1Origin.Number && b.EpochNum != epoch.Number {
		return false
	}
	return true
}

func (v *BatchValidator) windowElapsed(epoch eth.L1BlockRef) bool {
	for _, ref := range v.l1Blocks {
		if ref.Number >= epoch.Number+v.cfg.SeqWindowSize {
			return true
		}
	}
	return false
}

func (v *BatchValidator) Flush() { v.prev.Flush() }

func (v *BatchValidator) Reset() error {
	v.l1Blocks = nil
	return EOF
}

func errInadmissibleBatch(b *SingleBatch, parent eth.L2BlockRef) error {
	return &inadmissibleBatchError{batchParent: b.ParentHash, safeHead: parent.Hash}
}

type inadmissibleBatchError struct {
	batchParent common.Hash
	safeHead    common.Hash
}

func (e *inadmissibleBatchError) Error() string {
	return "batch parent " + e.batchParent.String() + " does not admit onto safe head " + e.safeHead.String()
}

// BatchMux selects BatchQueue (pre-Holocene,
// tolerant reordering) or BatchValidator (post-Holocene, strict in-order
// admission) per the active origin's timestamp, producing one
// SingleBatch per step either way.
type BatchMux struct {
	cfg    *rollup.Config
	legacy *BatchQueue
	strict *BatchValidator
}

func NewBatchMux(cfg *rollup.Config, prev batchQueueProvider) *BatchMux {
	return &BatchMux{cfg: cfg, legacy: NewBatchQueue(cfg, prev), strict: NewBatchValidator(cfg, prev)}
}

func (m *BatchMux) Origin() eth.L1BlockRef { return m.legacy.Origin() }

func (m *BatchMux) AddL1Block(ref eth.L1BlockRef) {
	m.legacy.AddL1Block(ref)
	m.strict.AddL1Block(ref)
}

func (m *BatchMux) NextBatch(l2SafeHead eth.L2BlockRef, epoch eth.L1BlockRef) (*SingleBatch, error) {
	if m.cfg.IsHolocene(m.Origin().Time) {
		return m.strict.NextBatch(l2SafeHead, epoch)
	}
	return m.legacy.NextBatch(l2SafeHead, epoch)
}

func (m *BatchMux) Flush() {
	m.legacy.Flush()
	m.strict.Flush()
}

func (m *BatchMux) Reset() error {
	_ = m.legacy.Reset()
	_ = m.strict.Reset()
	return EOF
}
