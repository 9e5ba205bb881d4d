// Package l2 implements the L2 chain-data provider: it turns a block hash
// or a state root into headers, transactions, and a stateless StateDB the
// executor can run against, resolving everything through a synchronous
// preimage oracle exactly like client/l1's provider does for the L1 side.
package l2

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/l2verify/fault-proof/client/l2/engine"
	"github.com/l2verify/fault-proof/client/l2/trie"
	"github.com/l2verify/fault-proof/client/mpt"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/preimage"
	"github.com/l2verify/fault-proof/rollup/derive"
)

// l2ToL1MessagePasserAddr is the predeployed withdrawals contract whose
// storage root feeds the pre-Isthmus output root formula. Kept as a
// separate constant from engine's private copy since this package has no
// reason to reach into engine for it.
var l2ToL1MessagePasserAddr = common.HexToAddress("0x4200000000000000000000000000000000000016")

// outputRootVersion0 is the only output root version this rollup has ever
// used.
var outputRootVersion0 eth.Bytes32

// Provider is the L2 chain-data surface the boot, driver, and claim
// validator depend on. Grounded on client/l1's PreimageOracle, adapted to
// L2's narrower needs: headers, the single L1-info transaction of a block
// (to recover its L1 origin and sequence number), output roots, and a
// fresh stateless StateDB to execute the next block against.
type Provider struct {
	oracle preimage.Oracle
	hint   preimage.Hinter
}

func NewProvider(oracle preimage.Oracle, hint preimage.Hinter) *Provider {
	return &Provider{oracle: oracle, hint: hint}
}

// HeaderByHash returns the decoded header for blockHash.
func (p *Provider) HeaderByHash(blockHash common.Hash) *types.Header {
	p.hint.Hint(BlockHeaderHint(blockHash))
	raw := p.oracle.Get(preimage.Keccak256Key(blockHash))
	var header types.Header
	if err := rlp.DecodeBytes(raw, &header); err != nil {
		panic(fmt.Errorf("invalid L2 block header %s: %w", blockHash, err))
	}
	return &header
}

// L2BlockRefByHash resolves the full L2BlockRef for blockHash, including
// its L1 origin and sequence number within that epoch. Those two fields
// are never stored in the L2 header itself; they only exist encoded into
// the block's first transaction, the L1-info deposit every op-stack L2
// block carries, so recovering them means decoding that one transaction.
func (p *Provider) L2BlockRefByHash(blockHash common.Hash) (eth.L2BlockRef, error) {
	header, info, err := p.l1InfoAt(blockHash)
	if err != nil {
		return eth.L2BlockRef{}, err
	}
	l1Origin := eth.BlockID{Hash: info.BlockHash, Number: info.Number}
	return eth.L2BlockRefFromHeader(blockHash, header, l1Origin, info.SequenceNumber), nil
}

// SystemConfigAtHash reconstructs the system config active as of blockHash:
// the batcher address and block gas limit come directly off that block's
// own L1-info deposit transaction and header, since both are re-asserted
// into every L2 block regardless of whether they changed; the remaining
// fields (fee-vault overhead/scalar, Holocene EIP-1559 override, Isthmus
// operator-fee params) are not re-asserted per block, so they carry over
// from genesis unless a Reset/Activation signal updates them mid-run from
// an observed L1 SystemConfigUpdated log.
func (p *Provider) SystemConfigAtHash(blockHash common.Hash, genesis eth.SystemConfig) (eth.SystemConfig, error) {
	header, info, err := p.l1InfoAt(blockHash)
	if err != nil {
		return eth.SystemConfig{}, err
	}
	sysCfg := genesis
	sysCfg.BatcherAddr = info.BatcherAddr
	sysCfg.GasLimit = header.GasLimit
	return sysCfg, nil
}

func (p *Provider) l1InfoAt(blockHash common.Hash) (*types.Header, *derive.L1BlockInfoTx, error) {
	header := p.HeaderByHash(blockHash)

	p.hint.Hint(TransactionsHint(blockHash))
	opaqueTxs, err := mpt.ReadTrie(header.TxHash, p.fetchNode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read L2 transaction trie for %s: %w", blockHash, err)
	}
	txs, err := eth.DecodeTransactions(opaqueTxs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode L2 transactions for %s: %w", blockHash, err)
	}
	if len(txs) == 0 {
		return nil, nil, fmt.Errorf("L2 block %s has no transactions, expected at least the L1-info deposit", blockHash)
	}

	info, err := derive.L1BlockInfoFromBytes(txs[0].Data())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode L1-info deposit tx of L2 block %s: %w", blockHash, err)
	}
	return header, info, nil
}

// OutputRootByHash computes the output root committing to blockHash's
// state, decoding the withdrawal storage root from the header directly
// when Isthmus already populates it there, or reading it out of state
// via an account-proof hint otherwise.
func (p *Provider) OutputRootByHash(blockHash common.Hash) (common.Hash, error) {
	header := p.HeaderByHash(blockHash)

	withdrawalRoot := header.WithdrawalsHash
	if withdrawalRoot == nil {
		root, err := p.messagePasserStorageRoot(blockHash, header.Root)
		if err != nil {
			return common.Hash{}, err
		}
		withdrawalRoot = &root
	}
	return eth.OutputRoot(outputRootVersion0, header.Root, *withdrawalRoot, blockHash), nil
}

// BlockHashByOutputRoot resolves the L2 block hash committed to by
// outputRoot. An output root is itself the keccak256 digest of
// version||stateRoot||withdrawalStorageRoot||blockHash (eth.OutputRoot), so
// this is a plain Keccak256-keyed preimage lookup like any other: the
// returned 128 bytes are exactly the four fields whose hash is the key
// being requested, giving the same host-independent integrity guarantee
// every other Keccak256-keyed preimage in this program carries.
func (p *Provider) BlockHashByOutputRoot(outputRoot common.Hash) (common.Hash, error) {
	p.hint.Hint(OutputRootHint(outputRoot))
	raw := p.oracle.Get(preimage.Keccak256Key(outputRoot))
	if len(raw) != 128 {
		return common.Hash{}, fmt.Errorf("invalid output root preimage for %s: got %d bytes, want 128", outputRoot, len(raw))
	}
	return common.BytesToHash(raw[96:128]), nil
}

// messagePasserStorageRoot reads the withdrawals contract's storage root
// out of the state trie rooted at stateRoot, hinting the account-level
// proof first since only the account's own root field is needed, not any
// individual storage slot.
func (p *Provider) messagePasserStorageRoot(blockHash, stateRoot common.Hash) (common.Hash, error) {
	p.hint.Hint(AccountProofHint(blockHash, l2ToL1MessagePasserAddr))
	db := trie.NewDB(stateRoot, p.fetchNode, p.fetchCode)
	root, err := db.StorageRoot(l2ToL1MessagePasserAddr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read withdrawals storage root at %s: %w", blockHash, err)
	}
	return root, nil
}

// NewBlockState returns a fresh StateDB reading through stateRoot, ready
// to execute the next block against. Every node and code preimage it
// resolves during that execution is hinted individually as it's needed.
func (p *Provider) NewBlockState(stateRoot common.Hash) *engine.StateDB {
	return engine.NewStateDB(trie.NewDB(stateRoot, p.fetchNode, p.fetchCode))
}

func (p *Provider) fetchNode(hash common.Hash) ([]byte, error) {
	p.hint.Hint(StateNodeHint(hash))
	return p.oracle.Get(preimage.Keccak256Key(hash)), nil
}

func (p *Provider) fetchCode(hash common.Hash) ([]byte, error) {
	p.hint.Hint(CodeHint(hash))
	return p.oracle.Get(preimage.Keccak256Key(hash)), nil
}
