package l1

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/l2verify/fault-proof/preimage"
)

const (
	HintBlockHeader = "l1-block-header"
	HintTransaction = "l1-transactions"
	HintReceipts    = "l1-receipts"
	HintBlob        = "l1-blob"
	HintPrecompile  = "l1-precompile"
)

// BlockHeaderHint asks the host to make the RLP preimage of an L1 block
// header, keyed by the header's own hash, available before the client
// requests it.
func BlockHeaderHint(blockHash common.Hash) preimage.Hint {
	return preimage.Hint(HintBlockHeader + " " + blockHash.String())
}

// TransactionsHint asks the host to prepare every node of the transaction
// trie rooted at the given block's header.
func TransactionsHint(blockHash common.Hash) preimage.Hint {
	return preimage.Hint(HintTransaction + " " + blockHash.String())
}

// ReceiptsHint asks the host to prepare every node of the receipt trie
// rooted at the given block's header.
func ReceiptsHint(blockHash common.Hash) preimage.Hint {
	return preimage.Hint(HintReceipts + " " + blockHash.String())
}

// BlobHint asks the host to prepare a blob's KZG commitment and all 4096
// field elements. The payload is blobHash || blob_index(8) || l1_time(8).
func BlobHint(payload []byte) preimage.Hint {
	return preimage.Hint(HintBlob + " " + hexutil.Encode(payload))
}

// PrecompileHintV2 asks the host to evaluate a precompile call and cache its
// result, keyed by the same digest the subsequent oracle request will use.
// The payload is address(20) || requiredGas(8) || input.
func PrecompileHintV2(payload []byte) preimage.Hint {
	return preimage.Hint(HintPrecompile + " " + hexutil.Encode(payload))
}

func encodeBlobHintPayload(blobHash common.Hash, blobIndex, l1Time uint64) []byte {
	meta := make([]byte, 48)
	copy(meta[:32], blobHash[:])
	binary.BigEndian.PutUint64(meta[32:40], blobIndex)
	binary.BigEndian.PutUint64(meta[40:48], l1Time)
	return meta
}
