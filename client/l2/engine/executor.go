package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus"
	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	"github.com/l2verify/fault-proof/client/mpt"
	"github.com/l2verify/fault-proof/eth"
)

var (
	ErrExceedsGasLimit = fmt.Errorf("tx gas exceeds block gas limit")
	ErrUsesTooMuchGas  = fmt.Errorf("action takes too much gas")
)

// l2ToL1MessagePasserAddr is the predeployed withdrawals contract whose
// storage root becomes the header's WithdrawalsHash from Isthmus onward.
var l2ToL1MessagePasserAddr = common.HexToAddress("0x4200000000000000000000000000000000000016")

// Executor runs one L2 block's worth of transactions against a StateDB and
// assembles the resulting header, body, and receipts. It never touches a
// live chain: the parent header and state are supplied up front, and
// nothing is persisted outside the backing trie.DB it was built with.
type Executor struct {
	cfg    *params.ChainConfig
	header *types.Header
	state  *StateDB
	evm    *vm.EVM

	gasPool      *core.GasPool
	transactions types.Transactions
	receipts     types.Receipts
}

// NewExecutor builds the header for the next block from its parent and the
// attributes that describe it, then prepares an EVM ready to run
// transactions against state. headers resolves any ancestor header
// BLOCKHASH might ask for, beyond the immediate parent. precompiles resolves
// ecrecover, the pairing/BLS12-381 checks, and the KZG point-evaluation
// precompile through the preimage channel instead of running them locally.
func NewExecutor(cfg *params.ChainConfig, parent *types.Header, attrs *eth.PayloadAttributes, state *StateDB, headers HeaderSource, precompiles PrecompileOracle) (*Executor, error) {
	header := buildHeader(cfg, parent, attrs)
	if header.GasLimit > params.MaxGasLimit {
		return nil, fmt.Errorf("invalid gas limit %d exceeds max %d", header.GasLimit, params.MaxGasLimit)
	}

	if header.ParentBeaconRoot != nil && cfg.IsCancun(header.Number, header.Time) {
		zero := uint64(0)
		header.BlobGasUsed = &zero
		header.ExcessBlobGas = &zero
	}

	blockCtx := core.NewEVMBlockContext(header, ancestorChainContext{headers: headers}, nil, cfg, state)
	vmenv := vm.NewEVM(blockCtx, state, cfg, vm.Config{PrecompileOverrides: CreatePrecompileOverrides(precompiles)})

	if header.ParentBeaconRoot != nil {
		core.ProcessBeaconBlockRoot(*header.ParentBeaconRoot, vmenv)
	}
	if cfg.IsPrague(header.Number, header.Time) {
		core.ProcessParentBlockHash(header.ParentHash, vmenv)
	}
	if cfg.IsIsthmus(header.Time) {
		mpRoot := state.GetStorageRoot(l2ToL1MessagePasserAddr)
		header.WithdrawalsHash = &mpRoot
		header.RequestsHash = &types.EmptyRequestsHash
	}

	return &Executor{
		cfg:     cfg,
		header:  header,
		state:   state,
		evm:     vmenv,
		gasPool: new(core.GasPool).AddGas(header.GasLimit),
	}, nil
}

func buildHeader(cfg *params.ChainConfig, parent *types.Header, attrs *eth.PayloadAttributes) *types.Header {
	header := &types.Header{
		ParentHash:       parent.Hash(),
		Coinbase:         attrs.SuggestedFeeRecipient,
		Number:           new(big.Int).Add(parent.Number, common.Big1),
		Difficulty:       common.Big0,
		GasLimit:         uint64(*attrs.GasLimit),
		Time:             uint64(attrs.Timestamp),
		MixDigest:        common.Hash(attrs.PrevRandao),
		Nonce:            types.EncodeNonce(0),
		ParentBeaconRoot: attrs.ParentBeaconBlockRoot,
	}
	header.BaseFee = eip1559.CalcBaseFee(cfg, parent)
	if attrs.EIP1559Params != nil && cfg.IsOptimismHolocene(header.Time) {
		d, e := eip1559.DecodeHolocene1559Params(attrs.EIP1559Params[:])
		if d == 0 {
			d = cfg.BaseFeeChangeDenominator()
			e = cfg.ElasticityMultiplier()
		}
		header.Extra = eip1559.EncodeOptimismExtraData(cfg, header.Time, d, e, attrs.MinBaseFee)
	}
	return header
}

// HeaderSource resolves an L2 header by hash. Satisfied by
// *client/l2.Provider, whose HeaderByHash already walks the oracle/hint
// channel to fetch any header in the chain, not only the parent.
type HeaderSource interface {
	HeaderByHash(hash common.Hash) *types.Header
}

// ancestorChainContext satisfies core.ChainContext so that
// core.NewEVMBlockContext's GetHashFn can walk back through real ancestors
// for BLOCKHASH (up to 256 blocks) instead of stopping at the immediate
// parent: each step just resolves one more header through the same
// preimage-backed lookup the parent header itself came from.
type ancestorChainContext struct {
	headers HeaderSource
}

func (ancestorChainContext) Engine() consensus.Engine { return nil }

func (c ancestorChainContext) GetHeader(hash common.Hash, _ uint64) *types.Header {
	return c.headers.HeaderByHash(hash)
}

// CheckTxWithinGasLimit rejects a transaction before it ever reaches the EVM
// if it cannot possibly fit the remaining block gas.
func (e *Executor) CheckTxWithinGasLimit(tx *types.Transaction) error {
	if tx.Gas() > e.header.GasLimit {
		return fmt.Errorf("%w: tx gas %d, block gas limit %d", ErrExceedsGasLimit, tx.Gas(), e.header.GasLimit)
	}
	if tx.Gas() > e.gasPool.Gas() {
		return fmt.Errorf("%w: tx gas %d, remaining %d", ErrUsesTooMuchGas, tx.Gas(), e.gasPool.Gas())
	}
	return nil
}

// AddTx applies one transaction to the running block, in go-ethereum's
// ApplyTransaction shape but built on core.ApplyMessage since the backing
// StateDB implements the interface, not the concrete *state.StateDB
// core.ApplyTransaction requires.
func (e *Executor) AddTx(tx *types.Transaction) (*types.Receipt, error) {
	if err := e.CheckTxWithinGasLimit(tx); err != nil {
		return nil, err
	}

	txIndex := len(e.transactions)
	e.state.SetTxContext(tx.Hash(), txIndex)

	msg, err := core.TransactionToMessage(tx, types.LatestSignerForChainID(e.cfg.ChainID), e.header.BaseFee)
	if err != nil {
		return nil, fmt.Errorf("failed to build message for tx %d: %w", txIndex, err)
	}

	snapshot := e.state.Snapshot()
	result, err := core.ApplyMessage(e.evm, msg, e.gasPool)
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, fmt.Errorf("failed to apply tx %d: %w", txIndex, err)
	}

	receipt := &types.Receipt{
		Type:              tx.Type(),
		CumulativeGasUsed: e.header.GasUsed + result.UsedGas,
		TxHash:            tx.Hash(),
		GasUsed:           result.UsedGas,
	}
	if result.Failed() {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		receipt.Status = types.ReceiptStatusSuccessful
	}
	if msg.To == nil {
		receipt.ContractAddress = crypto.CreateAddress(e.evm.TxContext.Origin, tx.Nonce())
	}
	receipt.Logs = e.state.GetLogs(tx.Hash(), e.header.Number.Uint64(), common.Hash{})
	receipt.Bloom = types.CreateBloom(types.Receipts{receipt})

	e.header.GasUsed += result.UsedGas
	e.transactions = append(e.transactions, tx)
	e.receipts = append(e.receipts, receipt)
	return receipt, nil
}

// Assemble finalizes the block: commits state to get the new root, derives
// the transaction/receipt tries, and returns the fully-formed block.
func (e *Executor) Assemble() (*types.Block, types.Receipts, error) {
	root, err := e.state.FinalizeBlock()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to finalize state: %w", err)
	}
	e.header.Root = root
	e.header.ReceiptHash = types.DeriveSha(e.receipts, &trieHasher{})
	e.header.TxHash = types.DeriveSha(e.transactions, &trieHasher{})
	e.header.Bloom = types.CreateBloom(e.receipts)
	e.header.UncleHash = types.EmptyUncleHash

	block := types.NewBlock(e.header, &types.Body{Transactions: e.transactions}, e.receipts, &trieHasher{})
	return block, e.receipts, nil
}

// trieHasher is the types.TrieHasher DeriveSha needs to index a block's
// transactions and receipts. It builds a fresh, in-memory trie keyed by RLP
// list index, reusing the same Merkle Patricia Trie implementation the state
// backend uses rather than pulling in go-ethereum's own mutable trie.Trie
// for a throwaway, one-shot index trie. Since the trie starts empty and is
// filled entirely by this call, no node ever needs to be resolved from a
// preimage.
type trieHasher struct {
	t *mpt.Trie
}

func unreachableFetcher(h common.Hash) ([]byte, error) {
	return nil, fmt.Errorf("trieHasher: unexpected blinded node lookup for %s", h)
}

func (h *trieHasher) Reset() { h.t = mpt.OpenRoot(mpt.EmptyRootHash) }

func (h *trieHasher) Update(key, value []byte) error {
	return h.t.Put(key, value, unreachableFetcher)
}

func (h *trieHasher) Hash() common.Hash {
	root, err := h.t.Hash()
	if err != nil {
		panic(fmt.Errorf("trieHasher: failed to hash index trie: %w", err))
	}
	return root
}
