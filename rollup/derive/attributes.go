package derive

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/l2verify/fault-proof/client/l1"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// l1InfoDepositerAddress is the well-known sender of the L1-block-info
// deposit transaction, shared by every OP-stack chain.
var l1InfoDepositerAddress = common.HexToAddress("0xDeaDDEaDDeAdDeAdDEAdDEaddeAddEAdDEAd0001")

// AttributesBuilder turns one L2 parent block and its chosen L1 origin
// into the payload attributes for the next L2 block: the L1-info deposit,
// any user deposits from a new epoch, any hardfork-activation upgrade
// transactions, and the block environment fields the executor needs.
// Grounded on op-node/rollup/derive/attributes.go's FetchingAttributesBuilder,
// adapted to read synchronously
// from a preimage-backed Oracle instead of an RPC client, and to carry
// the system config across calls explicitly rather than re-fetching it.
type AttributesBuilder struct {
	cfg *rollup.Config
	l1  l1.Oracle
}

func NewAttributesBuilder(cfg *rollup.Config, oracle l1.Oracle) *AttributesBuilder {
	return &AttributesBuilder{cfg: cfg, l1: oracle}
}

// PreparePayloadAttributes builds the next L2 block's attributes on top of
// l2Parent with L1 origin epoch, given the system config active as of
// l2Parent. It returns the attributes and the system config to carry
// forward to the next call (unchanged unless epoch advanced).
func (b *AttributesBuilder) PreparePayloadAttributes(l2Parent eth.L2BlockRef, epoch eth.L1BlockRef, sysCfg eth.SystemConfig) (*eth.PayloadAttributes, eth.SystemConfig, error) {
	var l1Info eth.BlockInfo
	var depositTxs []hexutil.Bytes
	var seqNumber uint64

	if l2Parent.L1Origin.Number != epoch.Number {
		info, receipts := b.l1.ReceiptsByBlockHash(epoch.Hash)
		if l2Parent.L1Origin.Hash != info.ParentHash() {
			return nil, sysCfg, NewResetError(fmt.Errorf(
				"cannot build on top of L2 parent %s: its L1 origin %s has parent %s, not the expected epoch origin %s",
				l2Parent, l2Parent.L1Origin, info.ParentHash(), epoch))
		}
		deposits, err := DeriveDeposits(info.Hash(), receipts, b.cfg)
		if err != nil {
			return nil, sysCfg, NewCriticalError(fmt.Errorf("failed to derive deposits: %w", err))
		}
		if len(deposits) > 0 {
			depositTxs = append(depositTxs, hexutil.Bytes(deposits))
		}
		if err := UpdateSystemConfigWithL1Receipts(&sysCfg, receipts, b.cfg, info.Time()); err != nil {
			return nil, sysCfg, NewCriticalError(fmt.Errorf("failed to apply system config updates: %w", err))
		}
		l1Info = info
		seqNumber = 0
	} else {
		if l2Parent.L1Origin.Hash != epoch.Hash {
			return nil, sysCfg, NewResetError(fmt.Errorf(
				"cannot build on top of L2 parent %s: conflicting L1 origin %s vs epoch %s", l2Parent, l2Parent.L1Origin, epoch))
		}
		l1Info = b.l1.HeaderByBlockHash(epoch.Hash)
		seqNumber = l2Parent.SequenceNumber + 1
	}

	nextL2Time := l2Parent.Time + b.cfg.BlockTime
	if nextL2Time < l1Info.Time() {
		return nil, sysCfg, NewResetError(fmt.Errorf(
			"cannot build L2 block at time %d on top of %s: before its L1 origin %s at time %d",
			nextL2Time, l2Parent, eth.ToBlockID(l1Info), l1Info.Time()))
	}

	upgradeTxs, err := b.upgradeTransactions(l2Parent.Time, nextL2Time)
	if err != nil {
		return nil, sysCfg, NewCriticalError(err)
	}

	l1InfoTx, err := b.l1InfoDepositTx(l1Info, sysCfg, seqNumber, nextL2Time)
	if err != nil {
		return nil, sysCfg, NewCriticalError(fmt.Errorf("failed to build L1 info deposit tx: %w", err))
	}

	txs := make([]hexutil.Bytes, 0, 1+len(depositTxs)+len(upgradeTxs))
	txs = append(txs, l1InfoTx)
	txs = append(txs, depositTxs...)
	for _, tx := range upgradeTxs {
		txs = append(txs, hexutil.Bytes(tx))
	}

	var withdrawals *types.Withdrawals
	if b.cfg.IsCanyon(nextL2Time) {
		withdrawals = &types.Withdrawals{}
	}

	var parentBeaconRoot *common.Hash
	if b.cfg.IsEcotone(nextL2Time) {
		parentBeaconRoot = l1Info.ParentBeaconRoot()
		if parentBeaconRoot == nil {
			parentBeaconRoot = new(common.Hash)
		}
	}

	gasLimit := sysCfg.GasLimit
	attrs := &eth.PayloadAttributes{
		Timestamp:             hexutil.Uint64(nextL2Time),
		PrevRandao:            eth.Bytes32(l1Info.MixDigest()),
		SuggestedFeeRecipient: SequencerFeeVaultAddr,
		Transactions:          txs,
		NoTxPool:              true,
		GasLimit:              (*eth.Uint64Quantity)(&gasLimit),
		Withdrawals:           withdrawals,
		ParentBeaconBlockRoot: parentBeaconRoot,
	}
	if b.cfg.IsHolocene(nextL2Time) {
		attrs.EIP1559Params = new(eth.Bytes8)
		*attrs.EIP1559Params = sysCfg.EIP1559Params
	}
	if b.cfg.IsIsthmus(nextL2Time) {
		op := eth.DecodeOperatorFeeParams(sysCfg.OperatorFeeParams)
		attrs.OperatorFeeParams = &op
	}
	return attrs, sysCfg, nil
}

func (b *AttributesBuilder) upgradeTransactions(parentTime, t uint64) ([][]byte, error) {
	var out [][]byte
	if b.cfg.IsCanyonActivationBlock(parentTime, t) {
		txs, err := CanyonNetworkUpgradeTransactions()
		if err != nil {
			return nil, fmt.Errorf("canyon upgrade txs: %w", err)
		}
		out = append(out, txs...)
	}
	if b.cfg.IsEcotoneActivationBlock(parentTime, t) {
		txs, err := EcotoneNetworkUpgradeTransactions()
		if err != nil {
			return nil, fmt.Errorf("ecotone upgrade txs: %w", err)
		}
		out = append(out, txs...)
	}
	if b.cfg.IsFjordActivationBlock(parentTime, t) {
		txs, err := FjordNetworkUpgradeTransactions()
		if err != nil {
			return nil, fmt.Errorf("fjord upgrade txs: %w", err)
		}
		out = append(out, txs...)
	}
	if b.cfg.IsIsthmusActivationBlock(parentTime, t) {
		txs, err := IsthmusNetworkUpgradeTransactions()
		if err != nil {
			return nil, fmt.Errorf("isthmus upgrade txs: %w", err)
		}
		out = append(out, txs...)
	}
	return out, nil
}

func (b *AttributesBuilder) l1InfoDepositTx(l1Info eth.BlockInfo, sysCfg eth.SystemConfig, seqNumber, l2Timestamp uint64) ([]byte, error) {
	info := &L1BlockInfoTx{
		Number:         l1Info.NumberU64(),
		Timestamp:      l1Info.Time(),
		BaseFee:        l1Info.BaseFee(),
		BlockHash:      l1Info.Hash(),
		SequenceNumber: seqNumber,
		BatcherAddr:    sysCfg.BatcherAddr,
	}
	if b.cfg.IsEcotone(l2Timestamp) {
		baseFeeScalar, blobBaseFeeScalar, opScalar, opConstant, err := systemConfigToL1BlockInfo(sysCfg)
		if err != nil {
			return nil, fmt.Errorf("invalid system config scalar: %w", err)
		}
		info.BaseFeeScalar = baseFeeScalar
		info.BlobBaseFeeScalar = blobBaseFeeScalar
		info.BlobBaseFee = l1Info.BlobBaseFee()
		if info.BlobBaseFee == nil {
			info.BlobBaseFee = big.NewInt(1)
		}
		if b.cfg.IsIsthmus(l2Timestamp) {
			info.OperatorFeeScalar = opScalar
			info.OperatorFeeConstant = opConstant
		}
	}

	data, err := L1InfoDepositBytes(b.cfg, info, l2Timestamp)
	if err != nil {
		return nil, err
	}

	source := L1InfoDepositSource{L1BlockHash: l1Info.Hash(), SeqNumber: seqNumber}
	gas := uint64(150_000)
	tx := &types.DepositTx{
		SourceHash:          source.SourceHash(),
		From:                l1InfoDepositerAddress,
		To:                  &L1BlockAddr,
		Mint:                big.NewInt(0),
		Value:               big.NewInt(0),
		Gas:                 gas,
		IsSystemTransaction: !b.cfg.IsRegolith(l2Timestamp),
		Data:                data,
	}
	return encodeDepositTx(tx)
}
