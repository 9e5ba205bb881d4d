// Package boot reads the six local preimage keys that seed a verification
// run: the L1 head to derive from, the agreed and claimed L2 output roots,
// the claimed block number, the L2 chain ID, and an optional inline rollup
// config for chains this program has no hardcoded entry for. Adapted from
// op-program/client/boot/{boot,common}.go, trimmed to this program's
// single-chain (preinterop) scope — no dependency-set or per-chain-config
// local keys, since a chain ID alone resolves both the rollup config and
// its derived EVM chain config through the chainconfig table.
package boot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/l2verify/fault-proof/chainconfig"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/preimage"
	"github.com/l2verify/fault-proof/rollup"
)

const (
	L1HeadLocalIndex preimage.LocalIndexKey = iota + 1
	L2OutputRootLocalIndex
	L2ClaimLocalIndex
	L2ClaimBlockNumberLocalIndex
	L2ChainIDLocalIndex
	RollupConfigLocalIndex
)

// Info is everything derived from the boot preimages, resolved once at
// program start and threaded through the rest of the run.
type Info struct {
	L1Head             common.Hash
	L2OutputRoot       common.Hash
	L2Claim            common.Hash
	L2ClaimBlockNumber uint64
	L2ChainID          eth.ChainID
	RollupConfig       *rollup.Config
}

// Oracle is the minimal surface boot reads from: a local-key lookup, which
// is all preimage.Oracle already provides.
type Oracle interface {
	Get(key preimage.Key) []byte
}

// Load reads every boot preimage and resolves the rollup config: the inline
// serialized config at RollupConfigLocalIndex when the oracle has bytes for
// it, otherwise the chain-ID table entry for the L2 chain ID.
func Load(oracle Oracle) (*Info, error) {
	l1Head := common.BytesToHash(oracle.Get(L1HeadLocalIndex))
	l2OutputRoot := common.BytesToHash(oracle.Get(L2OutputRootLocalIndex))
	l2Claim := common.BytesToHash(oracle.Get(L2ClaimLocalIndex))

	claimBlockBytes := oracle.Get(L2ClaimBlockNumberLocalIndex)
	if len(claimBlockBytes) != 8 {
		return nil, fmt.Errorf("invalid L2 claim block number preimage: got %d bytes, want 8", len(claimBlockBytes))
	}
	l2ClaimBlockNumber := binary.BigEndian.Uint64(claimBlockBytes)

	chainIDBytes := oracle.Get(L2ChainIDLocalIndex)
	if len(chainIDBytes) != 8 {
		return nil, fmt.Errorf("invalid L2 chain ID preimage: got %d bytes, want 8", len(chainIDBytes))
	}
	l2ChainID := eth.ChainIDFromUInt64(binary.BigEndian.Uint64(chainIDBytes))

	rollupCfg, err := resolveRollupConfig(oracle, l2ChainID)
	if err != nil {
		return nil, err
	}

	return &Info{
		L1Head:             l1Head,
		L2OutputRoot:       l2OutputRoot,
		L2Claim:            l2Claim,
		L2ClaimBlockNumber: l2ClaimBlockNumber,
		L2ChainID:          l2ChainID,
		RollupConfig:       rollupCfg,
	}, nil
}

func resolveRollupConfig(oracle Oracle, chainID eth.ChainID) (*rollup.Config, error) {
	if raw := oracle.Get(RollupConfigLocalIndex); len(raw) > 0 {
		var cfg rollup.Config
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse inline rollup config: %w", err)
		}
		return &cfg, nil
	}
	cfg, err := chainconfig.RollupConfigByChainID(chainID)
	if err != nil {
		return nil, fmt.Errorf("no rollup config for chain %s and none supplied inline: %w", chainID, err)
	}
	return cfg, nil
}
