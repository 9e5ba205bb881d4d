package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

func baseAdmissibleBatch(parent eth.L2BlockRef) *SingleBatch {
	return &SingleBatch{
		ParentHash: parent.Hash,
		Timestamp:  parent.Time + 2,
		EpochNum:   parent.L1Origin.Number,
	}
}

// TestBatchValidatorAdmissibleSequencerDriftBoundary exercises the exact
// edge of admissible's drift check: b.EpochNum > epoch.Number+MaxSequencerDrift.
// A batch epoch exactly at epoch.Number+drift must be admitted; one past it
// must not.
func TestBatchValidatorAdmissibleSequencerDriftBoundary(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, MaxSequencerDrift: 5}
	v := NewBatchValidator(cfg, nil)

	parentHash := common.HexToHash("0xaa")
	parent := eth.L2BlockRef{
		Hash:     parentHash,
		Time:     1000,
		L1Origin: eth.BlockID{Number: 50},
	}
	epoch := eth.L1BlockRef{Number: 50}

	atBoundary := baseAdmissibleBatch(parent)
	atBoundary.EpochNum = epoch.Number + cfg.MaxSequencerDrift
	require.True(t, v.admissible(atBoundary, parent, epoch), "epoch exactly at the drift boundary must be admissible")

	pastBoundary := baseAdmissibleBatch(parent)
	pastBoundary.EpochNum = epoch.Number + cfg.MaxSequencerDrift + 1
	require.False(t, v.admissible(pastBoundary, parent, epoch), "epoch one past the drift boundary must be rejected")
}

func TestBatchValidatorAdmissibleRejectsWrongParent(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, MaxSequencerDrift: 5}
	v := NewBatchValidator(cfg, nil)
	parent := eth.L2BlockRef{Hash: common.HexToHash("0xaa"), Time: 1000, L1Origin: eth.BlockID{Number: 50}}
	epoch := eth.L1BlockRef{Number: 50}

	b := baseAdmissibleBatch(parent)
	b.ParentHash = common.HexToHash("0xbb")
	require.False(t, v.admissible(b, parent, epoch))
}

func TestBatchValidatorAdmissibleRejectsWrongTimestamp(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, MaxSequencerDrift: 5}
	v := NewBatchValidator(cfg, nil)
	parent := eth.L2BlockRef{Hash: common.HexToHash("0xaa"), Time: 1000, L1Origin: eth.BlockID{Number: 50}}
	epoch := eth.L1BlockRef{Number: 50}

	b := baseAdmissibleBatch(parent)
	b.Timestamp = parent.Time + cfg.BlockTime + 1
	require.False(t, v.admissible(b, parent, epoch))
}

// TestBatchValidatorAdmissibleRequiresEpochAdvanceToMatch covers the rule
// that once the epoch has advanced past the parent's L1 origin, the batch
// must adopt the new epoch exactly - it cannot stay pinned to the old one
// or skip ahead further.
func TestBatchValidatorAdmissibleRequiresEpochAdvanceToMatch(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, MaxSequencerDrift: 5}
	v := NewBatchValidator(cfg, nil)
	parent := eth.L2BlockRef{Hash: common.HexToHash("0xaa"), Time: 1000, L1Origin: eth.BlockID{Number: 50}}
	advancedEpoch := eth.L1BlockRef{Number: 51}

	staysOnOldEpoch := baseAdmissibleBatch(parent)
	staysOnOldEpoch.EpochNum = 50
	require.False(t, v.admissible(staysOnOldEpoch, parent, advancedEpoch))

	adoptsNewEpoch := baseAdmissibleBatch(parent)
	adoptsNewEpoch.EpochNum = 51
	require.True(t, v.admissible(adoptsNewEpoch, parent, advancedEpoch))
}

func TestBatchValidatorWindowElapsedBoundary(t *testing.T) {
	cfg := &rollup.Config{SeqWindowSize: 10}
	v := NewBatchValidator(cfg, nil)
	epoch := eth.L1BlockRef{Number: 100}

	v.AddL1Block(eth.L1BlockRef{Number: epoch.Number + cfg.SeqWindowSize - 1})
	require.False(t, v.windowElapsed(epoch), "one block short of the window must not count as elapsed")

	v.AddL1Block(eth.L1BlockRef{Number: epoch.Number + cfg.SeqWindowSize})
	require.True(t, v.windowElapsed(epoch), "a block exactly at the window boundary must count as elapsed")
}
