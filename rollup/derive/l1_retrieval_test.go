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

// fakeRetrievalOracle implements just enough of l1.Oracle to exercise
// L1Retrieval: one block's worth of transactions, no receipts or blobs.
type fakeRetrievalOracle struct {
	header *types.Header
	txs    types.Transactions
}

func (o *fakeRetrievalOracle) HeaderByBlockHash(hash common.Hash) eth.BlockInfo {
	return eth.HeaderBlockInfoTrusted(hash, o.header)
}
func (o *fakeRetrievalOracle) TransactionsByBlockHash(hash common.Hash) (eth.BlockInfo, types.Transactions) {
	return eth.HeaderBlockInfoTrusted(hash, o.header), o.txs
}
func (o *fakeRetrievalOracle) ReceiptsByBlockHash(common.Hash) (eth.BlockInfo, types.Receipts) {
	panic("unused")
}
func (o *fakeRetrievalOracle) GetBlob(eth.L1BlockRef, eth.IndexedBlobHash) *eth.Blob {
	panic("unused")
}
func (o *fakeRetrievalOracle) Precompile(common.Address, []byte, uint64) ([]byte, bool) {
	panic("unused")
}

func legacyTxTo(to common.Address, data []byte) *types.Transaction {
	return types.NewTx(&types.LegacyTx{To: &to, Value: big.NewInt(0), Gas: 21_000, GasPrice: big.NewInt(1), Data: data})
}

// TestL1RetrievalFiltersToBatchInboxCalldata checks that only transactions
// addressed to the configured batch inbox contribute payloads, and that
// empty-calldata inbox transactions contribute nothing.
func TestL1RetrievalFiltersToBatchInboxCalldata(t *testing.T) {
	inbox := common.HexToAddress("0xff00000000000000000000000000000000ff00")
	other := common.HexToAddress("0x1234")

	oracle := &fakeRetrievalOracle{
		header: &types.Header{Number: big.NewInt(10)},
		txs: types.Transactions{
			legacyTxTo(other, []byte("ignored")),
			legacyTxTo(inbox, []byte("frame-bytes")),
			legacyTxTo(inbox, nil),
		},
	}
	cfg := &rollup.Config{BatchInboxAddress: inbox}
	origin := eth.L1BlockRef{Number: 10, Hash: common.HexToHash("0xaa")}
	trav := NewL1Traversal(cfg, oracle, origin, eth.SystemConfig{})
	retrieval := NewL1Retrieval(cfg, oracle, trav)

	data, err := retrieval.NextData()
	require.NoError(t, err)
	require.Equal(t, []byte("frame-bytes"), data)

	_, err = retrieval.NextData()
	require.ErrorIs(t, err, EOF, "no more inbox payloads for this origin once the one non-empty calldata tx is consumed")
}

func TestL1RetrievalTracksTraversalOrigin(t *testing.T) {
	inbox := common.HexToAddress("0xff00000000000000000000000000000000ff00")
	oracle := &fakeRetrievalOracle{header: &types.Header{Number: big.NewInt(10)}}
	cfg := &rollup.Config{BatchInboxAddress: inbox}
	origin := eth.L1BlockRef{Number: 10, Hash: common.HexToHash("0xaa")}
	trav := NewL1Traversal(cfg, oracle, origin, eth.SystemConfig{})
	retrieval := NewL1Retrieval(cfg, oracle, trav)

	require.Equal(t, origin, retrieval.Origin())
}
