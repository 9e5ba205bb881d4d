package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

func TestL1TraversalYieldsBlockExactlyOnce(t *testing.T) {
	origin := eth.L1BlockRef{Number: 100, Hash: common.HexToHash("0x100")}
	tr := NewL1Traversal(&rollup.Config{}, nil, origin, eth.SystemConfig{})

	_, err := tr.NextL1Block()
	require.ErrorIs(t, err, EOF, "a fresh traversal has nothing queued until AdvanceOrigin succeeds")

	require.NoError(t, tr.AdvanceOrigin(eth.L1BlockRef{Number: 101, ParentHash: origin.Hash}, nil))

	got, err := tr.NextL1Block()
	require.NoError(t, err)
	require.Equal(t, uint64(101), got.Number)

	_, err = tr.NextL1Block()
	require.ErrorIs(t, err, EOF, "the same block must not be yielded twice")
}

func TestL1TraversalRejectsNonContiguousAdvance(t *testing.T) {
	origin := eth.L1BlockRef{Number: 100, Hash: common.HexToHash("0x100")}
	tr := NewL1Traversal(&rollup.Config{}, nil, origin, eth.SystemConfig{})

	err := tr.AdvanceOrigin(eth.L1BlockRef{Number: 102, ParentHash: origin.Hash}, nil)
	require.Error(t, err)
	require.True(t, IsReset(err), "a skipped block number must be a reset error, not a critical one")
}

func TestL1TraversalRejectsReorg(t *testing.T) {
	origin := eth.L1BlockRef{Number: 100, Hash: common.HexToHash("0x100")}
	tr := NewL1Traversal(&rollup.Config{}, nil, origin, eth.SystemConfig{})

	err := tr.AdvanceOrigin(eth.L1BlockRef{Number: 101, ParentHash: common.HexToHash("0xbad")}, types.Receipts{})
	require.Error(t, err)
	require.True(t, IsReset(err), "a parent-hash mismatch must be a reset error")
}
