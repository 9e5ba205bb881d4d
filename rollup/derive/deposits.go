package derive

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/l2verify/fault-proof/rollup"
)

// depositEventSignature is keccak256("TransactionDeposited(address,address,uint256,bytes)"),
// emitted once per deposit by the L1 deposit contract. Reconstructed from
// the well-known OP-stack deposit-contract event layout since the contract
// source itself is outside this repository's scope; see system_config.go
// for the same kind of reconstruction applied to config-update events.
var depositEventSignature = crypto.Keccak256Hash([]byte("TransactionDeposited(address,address,uint256,bytes)"))

const depositEventVersion0 = 0

// DeriveDeposits extracts every deposit transaction logged against the
// rollup's deposit contract in one L1 block's receipts, in log order, and
// returns them RLP-encoded and EIP-2718-typed exactly as they must appear
// at the front of that epoch's first L2 block.
func DeriveDeposits(blockHash common.Hash, receipts types.Receipts, cfg *rollup.Config) ([]byte, error) {
	return deriveDepositsBytes(blockHash, receipts, cfg.DepositContractAddress)
}

func deriveDepositsBytes(blockHash common.Hash, receipts types.Receipts, depositContract common.Address) ([]byte, error) {
	var out []byte
	for _, receipt := range receipts {
		if receipt.Status != types.ReceiptStatusSuccessful {
			continue
		}
		for _, log := range receipt.Logs {
			if log.Address != depositContract {
				continue
			}
			if len(log.Topics) == 0 || log.Topics[0] != depositEventSignature {
				continue
			}
			tx, err := unmarshalDepositLog(blockHash, log)
			if err != nil {
				return nil, fmt.Errorf("invalid deposit log at index %d: %w", log.Index, err)
			}
			encoded, err := tx.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("failed to encode deposit tx: %w", err)
			}
			out = append(out, encoded...)
		}
	}
	return out, nil
}

// unmarshalDepositLog decodes one TransactionDeposited log into a deposit
// transaction. The event carries `from` and `to` as indexed topics and a
// version-tagged opaqueData blob as its single dynamic-bytes data field;
// version 0's opaqueData is abi.encodePacked(value, mint, gasLimit,
// isCreation, data).
func unmarshalDepositLog(blockHash common.Hash, log *types.Log) (*types.Transaction, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}
	from := common.BytesToAddress(log.Topics[1][12:])
	to := common.BytesToAddress(log.Topics[2][12:])

	if len(log.Data) < 64 {
		return nil, fmt.Errorf("deposit log data too short for offset/length header")
	}
	length := new(big.Int).SetBytes(log.Data[32:64]).Uint64()
	if uint64(len(log.Data)) < 64+length {
		return nil, fmt.Errorf("deposit log data truncated")
	}
	opaque := log.Data[64 : 64+length]
	if len(opaque) < 1 {
		return nil, fmt.Errorf("empty opaque deposit data")
	}
	version := opaque[0]
	if version != depositEventVersion0 {
		return nil, fmt.Errorf("unsupported deposit event version %d", version)
	}
	payload := opaque[1:]
	if len(payload) < 73 {
		return nil, fmt.Errorf("opaque deposit payload too short: %d bytes", len(payload))
	}
	value := new(big.Int).SetBytes(payload[0:32])
	mint := new(big.Int).SetBytes(payload[32:64])
	gasLimit := new(big.Int).SetBytes(payload[64:72]).Uint64()
	isCreation := payload[72] != 0
	data := payload[73:]

	var toPtr *common.Address
	if !isCreation {
		toPtr = &to
	}

	deposit := &types.DepositTx{
		SourceHash:          UserDepositSource{L1BlockHash: blockHash, LogIndex: uint64(log.Index)}.SourceHash(),
		From:                from,
		To:                  toPtr,
		Mint:                mint,
		Value:               value,
		Gas:                 gasLimit,
		IsSystemTransaction: false,
		Data:                data,
	}
	return types.NewTx(deposit), nil
}

// encodeDepositTx is a thin wrapper used by upgrade-transaction builders,
// which construct DepositTx values directly rather than by decoding a log.
func encodeDepositTx(tx *types.DepositTx) ([]byte, error) {
	return types.NewTx(tx).MarshalBinary()
}
