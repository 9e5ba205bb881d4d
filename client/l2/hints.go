package l2

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/l2verify/fault-proof/preimage"
)

const (
	HintBlockHeader         = "l2-block-header"
	HintTransactions        = "l2-transactions"
	HintCode                = "l2-code"
	HintStateNode           = "l2-state-node"
	HintAccountProof        = "l2-account-proof"
	HintAccountStorageProof = "l2-account-storage-proof"
	HintOutputRoot          = "l2-output-root"
)

// BlockHeaderHint asks the host to make an L2 block header's RLP preimage
// available, keyed by the header's own hash.
func BlockHeaderHint(blockHash common.Hash) preimage.Hint {
	return preimage.Hint(HintBlockHeader + " " + blockHash.String())
}

// TransactionsHint asks the host to prepare every node of the transaction
// trie rooted at the given block's header.
func TransactionsHint(blockHash common.Hash) preimage.Hint {
	return preimage.Hint(HintTransactions + " " + blockHash.String())
}

// CodeHint asks the host to make a contract's bytecode available, keyed by
// its keccak256 code hash.
func CodeHint(codeHash common.Hash) preimage.Hint {
	return preimage.Hint(HintCode + " " + codeHash.String())
}

// StateNodeHint asks the host to make one state or storage trie node
// available, keyed by its own commitment hash. Issued once per node as the
// executor's trie walk resolves it, matching this package's node-at-a-time
// fetch shape.
func StateNodeHint(nodeHash common.Hash) preimage.Hint {
	return preimage.Hint(HintStateNode + " " + nodeHash.String())
}

// AccountProofHint asks the host to prepare addr's inclusion proof against
// the state root of blockHash, used when only an account's own fields (not
// its storage) are needed.
func AccountProofHint(blockHash common.Hash, addr common.Address) preimage.Hint {
	return preimage.Hint(HintAccountProof + " " + blockHash.String() + " " + addr.String())
}

// AccountStorageProofHint asks the host to prepare a storage slot's
// inclusion proof for addr against the state root of blockHash.
func AccountStorageProofHint(blockHash common.Hash, addr common.Address, slot common.Hash) preimage.Hint {
	return preimage.Hint(HintAccountStorageProof + " " + blockHash.String() + " " + addr.String() + " " + slot.String())
}

// OutputRootHint asks the host to make the four committed fields
// (version, state root, withdrawal storage root, block hash) behind the
// given output root available as its own Keccak256 preimage: the host has
// full access to the real L2 chain and can look the block up directly, and
// since those four fields keccak256 to the output root itself, serving them
// under that key needs no separate trust from any other preimage lookup.
func OutputRootHint(outputRoot common.Hash) preimage.Hint {
	return preimage.Hint(HintOutputRoot + " " + outputRoot.String())
}
