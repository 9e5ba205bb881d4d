package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// TestSpanBatchExpandProducesOneSingleBatchPerBlock exercises the quantified
// invariant that expanding a span batch yields exactly BlockCount single
// batches, each at the right timestamp and epoch, with transactions sliced
// out in order.
func TestSpanBatchExpandProducesOneSingleBatchPerBlock(t *testing.T) {
	firstEpochHash := common.HexToHash("0x01")
	span := &SpanBatch{
		RelTimestamp:  100,
		L1OriginNum:   50,
		BlockCount:    3,
		OriginBits:    []bool{false, true, false},
		BlockTxCounts: []uint64{1, 0, 2},
		Transactions:  [][]byte{{0xaa}, {0xbb}, {0xcc}},
	}

	out, err := span.Expand(1_000, 2, firstEpochHash)
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Block 0: first block, no epoch advance, carries the seed epoch hash.
	require.Equal(t, uint64(49), out[0].EpochNum) // StartEpochNum backs off by the one advance in OriginBits
	require.Equal(t, firstEpochHash, out[0].EpochHash)
	require.Equal(t, uint64(1_100), out[0].Timestamp)
	require.Equal(t, [][]byte{{0xaa}}, out[0].Transactions)

	// Block 1: OriginBits[1] advances the epoch, zeroing the epoch hash
	// since only the batch validator (not Expand) knows the new one.
	require.Equal(t, uint64(50), out[1].EpochNum)
	require.Equal(t, common.Hash{}, out[1].EpochHash)
	require.Equal(t, uint64(1_102), out[1].Timestamp)
	require.Empty(t, out[1].Transactions)

	// Block 2: epoch unchanged from block 1, two transactions.
	require.Equal(t, uint64(50), out[2].EpochNum)
	require.Equal(t, common.Hash{}, out[2].EpochHash)
	require.Equal(t, uint64(1_104), out[2].Timestamp)
	require.Equal(t, [][]byte{{0xbb}, {0xcc}}, out[2].Transactions)
}

func TestSpanBatchExpandRejectsBitlistBlockCountMismatch(t *testing.T) {
	span := &SpanBatch{
		BlockCount:    2,
		OriginBits:    []bool{false},
		BlockTxCounts: []uint64{0, 0},
	}
	_, err := span.Expand(0, 1, common.Hash{})
	require.Error(t, err)
}

func TestSpanBatchExpandRejectsTransactionOverrun(t *testing.T) {
	span := &SpanBatch{
		BlockCount:    1,
		OriginBits:    []bool{false},
		BlockTxCounts: []uint64{2},
		Transactions:  [][]byte{{0xaa}},
	}
	_, err := span.Expand(0, 1, common.Hash{})
	require.Error(t, err)
}

func TestSpanBatchStartEpochNumAccountsForEveryAdvance(t *testing.T) {
	span := &SpanBatch{L1OriginNum: 10, OriginBits: []bool{false, true, true}}
	// Two advances after the first block: the last block's origin is 10,
	// so the first block's origin must be 10-2=8.
	require.Equal(t, uint64(8), span.StartEpochNum())

	firstBlockAdvances := &SpanBatch{L1OriginNum: 10, OriginBits: []bool{true, false}}
	// An advance on the very first block also counts, and bumps the start
	// forward by one relative to the backed-off value.
	require.Equal(t, uint64(10), firstBlockAdvances.StartEpochNum())
}
