package derive

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// fakeL1Oracle implements l1.Oracle with headers supplied up front, no
// transactions or receipts - enough to exercise the same-epoch path of
// PreparePayloadAttributes, which never needs them.
type fakeL1Oracle struct {
	headers map[common.Hash]*types.Header
}

func (o *fakeL1Oracle) HeaderByBlockHash(hash common.Hash) eth.BlockInfo {
	return eth.HeaderBlockInfoTrusted(hash, o.headers[hash])
}
func (o *fakeL1Oracle) TransactionsByBlockHash(common.Hash) (eth.BlockInfo, types.Transactions) {
	panic("not needed for the same-epoch path")
}
func (o *fakeL1Oracle) ReceiptsByBlockHash(common.Hash) (eth.BlockInfo, types.Receipts) {
	panic("not needed for the same-epoch path")
}
func (o *fakeL1Oracle) GetBlob(eth.L1BlockRef, eth.IndexedBlobHash) *eth.Blob { panic("unused") }
func (o *fakeL1Oracle) Precompile(common.Address, []byte, uint64) ([]byte, bool) {
	panic("unused")
}

func TestAttributesBuilderSameEpochProducesL1InfoDepositOnly(t *testing.T) {
	epochHash := common.HexToHash("0xe1")
	header := &types.Header{
		Number:  big.NewInt(50),
		Time:    900,
		BaseFee: big.NewInt(7),
	}
	oracle := &fakeL1Oracle{headers: map[common.Hash]*types.Header{epochHash: header}}
	cfg := &rollup.Config{BlockTime: 2}
	b := NewAttributesBuilder(cfg, oracle)

	parent := eth.L2BlockRef{
		Hash:           common.HexToHash("0xaa"),
		Time:           898,
		L1Origin:       eth.BlockID{Hash: epochHash, Number: 50},
		SequenceNumber: 3,
	}
	epoch := eth.L1BlockRef{Hash: epochHash, Number: 50}

	attrs, sysCfg, err := b.PreparePayloadAttributes(parent, epoch, eth.SystemConfig{GasLimit: 30_000_000})
	require.NoError(t, err)
	require.Equal(t, uint64(30_000_000), sysCfg.GasLimit)
	require.Len(t, attrs.Transactions, 1, "same-epoch blocks carry only the L1-info deposit, no user deposits")
	require.True(t, attrs.NoTxPool)
}

func TestAttributesBuilderRejectsOriginHashMismatchOnSameEpoch(t *testing.T) {
	epochHash := common.HexToHash("0xe1")
	oracle := &fakeL1Oracle{headers: map[common.Hash]*types.Header{epochHash: {Number: big.NewInt(50), Time: 900}}}
	cfg := &rollup.Config{BlockTime: 2}
	b := NewAttributesBuilder(cfg, oracle)

	parent := eth.L2BlockRef{
		Hash:     common.HexToHash("0xaa"),
		Time:     898,
		L1Origin: eth.BlockID{Hash: common.HexToHash("0xbadbad"), Number: 50},
	}
	epoch := eth.L1BlockRef{Hash: epochHash, Number: 50}

	_, _, err := b.PreparePayloadAttributes(parent, epoch, eth.SystemConfig{})
	require.Error(t, err)
	require.True(t, IsReset(err))
}

func TestAttributesBuilderRejectsL2TimeBeforeL1Origin(t *testing.T) {
	epochHash := common.HexToHash("0xe1")
	oracle := &fakeL1Oracle{headers: map[common.Hash]*types.Header{epochHash: {Number: big.NewInt(50), Time: 1_000}}}
	cfg := &rollup.Config{BlockTime: 2}
	b := NewAttributesBuilder(cfg, oracle)

	parent := eth.L2BlockRef{
		Hash:     common.HexToHash("0xaa"),
		Time:     900, // next L2 time (902) would still be before the L1 origin's time (1000)
		L1Origin: eth.BlockID{Hash: epochHash, Number: 50},
	}
	epoch := eth.L1BlockRef{Hash: epochHash, Number: 50}

	_, _, err := b.PreparePayloadAttributes(parent, epoch, eth.SystemConfig{})
	require.Error(t, err)
	require.True(t, IsReset(err))
}

func TestAttributesQueueRejectsBatchWithWrongParent(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2}
	builder := NewAttributesBuilder(cfg, &fakeL1Oracle{headers: map[common.Hash]*types.Header{}})
	q := NewAttributesQueue(nil, cfg, builder, nil, eth.SystemConfig{})

	l2SafeHead := eth.L2BlockRef{Hash: common.HexToHash("0xaa"), Time: 1000}
	q.batch = &SingleBatch{ParentHash: common.HexToHash("0xbb"), Timestamp: 1002}

	_, err := q.createNextAttributes(q.batch, l2SafeHead)
	require.Error(t, err)
	require.True(t, IsReset(err))
}
