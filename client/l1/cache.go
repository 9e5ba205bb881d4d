package l1

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/l2verify/fault-proof/eth"
)

// headerCacheSize should cover walking back from the L1 head far enough to
// find an origin old enough to start buffering channel data from.
const headerCacheSize = 3_000
const receiptsCacheSize = 200
const blobCacheSize = 500

// CachingOracle memoizes the expensive parts of Oracle (header RLP decode,
// full trie walks, blob field-element reconstruction) so a derivation
// pipeline revisiting the same L1 block doesn't re-walk its tries.
type CachingOracle struct {
	oracle Oracle

	headers  *simplelru.LRU[common.Hash, eth.BlockInfo]
	txs      *simplelru.LRU[common.Hash, types.Transactions]
	receipts *simplelru.LRU[common.Hash, types.Receipts]
	blobs    *simplelru.LRU[common.Hash, *eth.Blob]
}

func NewCachingOracle(oracle Oracle) *CachingOracle {
	headers, _ := simplelru.NewLRU[common.Hash, eth.BlockInfo](headerCacheSize, nil)
	txs, _ := simplelru.NewLRU[common.Hash, types.Transactions](receiptsCacheSize, nil)
	receipts, _ := simplelru.NewLRU[common.Hash, types.Receipts](receiptsCacheSize, nil)
	blobs, _ := simplelru.NewLRU[common.Hash, *eth.Blob](blobCacheSize, nil)
	return &CachingOracle{oracle: oracle, headers: headers, txs: txs, receipts: receipts, blobs: blobs}
}

func (o *CachingOracle) HeaderByBlockHash(blockHash common.Hash) eth.BlockInfo {
	if info, ok := o.headers.Get(blockHash); ok {
		return info
	}
	info := o.oracle.HeaderByBlockHash(blockHash)
	o.headers.Add(blockHash, info)
	return info
}

func (o *CachingOracle) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions) {
	if txs, ok := o.txs.Get(blockHash); ok {
		return o.HeaderByBlockHash(blockHash), txs
	}
	info, txs := o.oracle.TransactionsByBlockHash(blockHash)
	o.headers.Add(blockHash, info)
	o.txs.Add(blockHash, txs)
	return info, txs
}

func (o *CachingOracle) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts) {
	if rcpts, ok := o.receipts.Get(blockHash); ok {
		return o.HeaderByBlockHash(blockHash), rcpts
	}
	info, rcpts := o.oracle.ReceiptsByBlockHash(blockHash)
	o.headers.Add(blockHash, info)
	o.receipts.Add(blockHash, rcpts)
	return info, rcpts
}

func (o *CachingOracle) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) *eth.Blob {
	if blob, ok := o.blobs.Get(blobHash.Hash); ok {
		return blob
	}
	blob := o.oracle.GetBlob(ref, blobHash)
	o.blobs.Add(blobHash.Hash, blob)
	return blob
}

// Precompile results are never cached: the host already caches them keyed
// by the exact same digest the client re-derives, and caching them again
// here would only duplicate memory for data that is rarely requested twice.
func (o *CachingOracle) Precompile(address common.Address, input []byte, requiredGas uint64) ([]byte, bool) {
	return o.oracle.Precompile(address, input, requiredGas)
}

var _ Oracle = (*CachingOracle)(nil)
