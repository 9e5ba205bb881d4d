package eth

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

func rlpEncode(val interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(val)
}

func keccak256Hash(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

// DecodeTransactions decodes a list of opaque RLP-encoded transactions, the
// form a transaction trie's leaves are stored in.
func DecodeTransactions(opaque [][]byte) (types.Transactions, error) {
	txs := make(types.Transactions, len(opaque))
	for i, raw := range opaque {
		var tx types.Transaction
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tx %d: %w", i, err)
		}
		txs[i] = &tx
	}
	return txs, nil
}

// TransactionsToHashes extracts the hash of every transaction, in order.
func TransactionsToHashes(txs types.Transactions) []common.Hash {
	hashes := make([]common.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
	}
	return hashes
}

// DecodeRawReceipts decodes a list of opaque RLP-encoded receipts read out of
// a block's receipt trie. Receipts stored pre-Byzantium style have no status
// field; go-ethereum's receipt decoder handles both, but needs a matching
// transaction hash and block context stitched back in since the trie leaf
// alone does not carry them.
func DecodeRawReceipts(block BlockID, opaque [][]byte, txHashes []common.Hash) (types.Receipts, error) {
	if len(opaque) != len(txHashes) {
		return nil, fmt.Errorf("got %d receipts but %d tx hashes", len(opaque), len(txHashes))
	}
	receipts := make(types.Receipts, len(opaque))
	for i, raw := range opaque {
		var r types.Receipt
		if err := r.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal receipt %d: %w", i, err)
		}
		r.TxHash = txHashes[i]
		r.BlockHash = block.Hash
		r.BlockNumber = new(big.Int).SetUint64(block.Number)
		r.TransactionIndex = uint(i)
		receipts[i] = &r
	}
	return receipts, nil
}
