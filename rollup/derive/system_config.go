package derive

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// configUpdateEventSignature is keccak256("ConfigUpdate(uint256,uint8,bytes)"),
// emitted by the L1 system-config contract on every configuration change.
var configUpdateEventSignature = crypto.Keccak256Hash([]byte("ConfigUpdate(uint256,uint8,bytes)"))

// systemConfigUpdateType mirrors the contract's UpdateType enum.
type systemConfigUpdateType uint8

const (
	sysCfgUpdateBatcher           systemConfigUpdateType = 0
	sysCfgUpdateGasConfig         systemConfigUpdateType = 1
	sysCfgUpdateGasLimit          systemConfigUpdateType = 2
	sysCfgUpdateUnsafeBlockSigner systemConfigUpdateType = 3
	sysCfgUpdateEIP1559Params     systemConfigUpdateType = 4
	sysCfgUpdateOperatorFee       systemConfigUpdateType = 5
)

// UpdateSystemConfigWithL1Receipts replays every ConfigUpdate event the L1
// system-config contract emitted in one L1 block's receipts into sysCfg,
// in log order. Grounded on op-node/rollup/derive/attributes.go and
// l1_traversal_managed.go's call-site usage, and on the
// well-known OP-stack SystemConfig contract event layout — the contract
// implementation itself is outside this repository's scope, so this
// replays its emitted events rather than its storage layout.
func UpdateSystemConfigWithL1Receipts(sysCfg *eth.SystemConfig, receipts types.Receipts, cfg *rollup.Config, l1Time uint64) error {
	for _, receipt := range receipts {
		if receipt.Status != types.ReceiptStatusSuccessful {
			continue
		}
		for _, log := range receipt.Logs {
			if log.Address != cfg.L1SystemConfigAddress {
				continue
			}
			if len(log.Topics) == 0 || log.Topics[0] != configUpdateEventSignature {
				continue
			}
			if err := applyConfigUpdate(sysCfg, log, cfg, l1Time); err != nil {
				return fmt.Errorf("failed to apply system config update log %d: %w", log.Index, err)
			}
		}
	}
	return nil
}

func applyConfigUpdate(sysCfg *eth.SystemConfig, log *types.Log, cfg *rollup.Config, l1Time uint64) error {
	if len(log.Topics) < 3 {
		return fmt.Errorf("system config update log missing indexed fields")
	}
	updateType := systemConfigUpdateType(log.Topics[2][31])

	// ABI-encoded dynamic bytes payload: 32-byte offset word, 32-byte
	// length word, then the payload itself, left-padded to a 32-byte
	// boundary. We only need the length-prefixed payload.
	if len(log.Data) < 64 {
		return fmt.Errorf("system config update log data too short")
	}
	length := new(big.Int).SetBytes(log.Data[32:64]).Uint64()
	if uint64(len(log.Data)) < 64+length {
		return fmt.Errorf("system config update log data truncated")
	}
	payload := log.Data[64 : 64+length]

	switch updateType {
	case sysCfgUpdateBatcher:
		if len(payload) < 32 {
			return fmt.Errorf("batcher update payload too short")
		}
		sysCfg.BatcherAddr = common.BytesToAddress(payload[12:32])
	case sysCfgUpdateGasConfig:
		if cfg.IsEcotone(l1Time) {
			if len(payload) < 32 {
				return fmt.Errorf("ecotone gas config payload too short")
			}
			sysCfg.Scalar = eth.Bytes32{}
			copy(sysCfg.Scalar[:], payload[:32])
		} else {
			if len(payload) < 64 {
				return fmt.Errorf("gas config payload too short")
			}
			sysCfg.Overhead = eth.Bytes32(common.BytesToHash(payload[:32]))
			sysCfg.Scalar = eth.Bytes32(common.BytesToHash(payload[32:64]))
		}
	case sysCfgUpdateGasLimit:
		if len(payload) < 32 {
			return fmt.Errorf("gas limit update payload too short")
		}
		sysCfg.GasLimit = new(big.Int).SetBytes(payload[24:32]).Uint64()
	case sysCfgUpdateUnsafeBlockSigner:
		// Not relevant to derivation: the unsafe block signer only gates
		// P2P gossip of unsafe blocks, which this verifier never consumes.
	case sysCfgUpdateEIP1559Params:
		if len(payload) < 8 {
			return fmt.Errorf("eip1559 params payload too short")
		}
		copy(sysCfg.EIP1559Params[:], payload[:8])
	case sysCfgUpdateOperatorFee:
		if len(payload) < 32 {
			return fmt.Errorf("operator fee params payload too short")
		}
		copy(sysCfg.OperatorFeeParams[:], payload[:32])
	default:
		return fmt.Errorf("unknown system config update type %d", updateType)
	}
	return nil
}
