// Package config resolves the host binary's CLI flags into the boot values
// and storage options host.Run needs, grounded on
// op-program/host/config/config.go, trimmed to this host's offline,
// single-chain scope.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/l2verify/fault-proof/chainconfig"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/host/flags"
	"github.com/l2verify/fault-proof/rollup"
)

var (
	ErrInvalidL1Head       = errors.New("invalid l1 head")
	ErrInvalidL2OutputRoot = errors.New("invalid l2 output root")
	ErrInvalidL2Claim      = errors.New("invalid l2 claim")
	ErrMissingChainConfig  = errors.New("missing rollup.config or l2.chainid")
)

type Config struct {
	L1Head             common.Hash
	L2OutputRoot       common.Hash
	L2Claim            common.Hash
	L2ClaimBlockNumber uint64
	L2ChainID          eth.ChainID
	RollupConfig       *rollup.Config
	// InlineRollupConfig marks that RollupConfig was loaded from a file
	// rather than the built-in chain-ID table, so the host must also serve
	// it to the client over the rollup-config local key: the client has no
	// other way to learn a config that isn't in its own copy of that table.
	InlineRollupConfig bool
	DataDir            string
}

func NewConfigFromCLI(ctx *cli.Context) (*Config, error) {
	l1Head := common.HexToHash(ctx.String(flags.L1Head.Name))
	if l1Head == (common.Hash{}) {
		return nil, ErrInvalidL1Head
	}
	l2OutputRoot := common.HexToHash(ctx.String(flags.L2OutputRoot.Name))
	if l2OutputRoot == (common.Hash{}) {
		return nil, ErrInvalidL2OutputRoot
	}
	l2Claim := common.HexToHash(ctx.String(flags.L2Claim.Name))
	if l2Claim == (common.Hash{}) {
		return nil, ErrInvalidL2Claim
	}

	rollupCfg, chainID, inline, err := loadRollupConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Config{
		L1Head:             l1Head,
		L2OutputRoot:       l2OutputRoot,
		L2Claim:            l2Claim,
		L2ClaimBlockNumber: ctx.Uint64(flags.L2BlockNumber.Name),
		L2ChainID:          chainID,
		RollupConfig:       rollupCfg,
		InlineRollupConfig: inline,
		DataDir:            ctx.String(flags.DataDir.Name),
	}, nil
}

func loadRollupConfig(ctx *cli.Context) (*rollup.Config, eth.ChainID, bool, error) {
	if path := ctx.String(flags.RollupConfig.Name); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eth.ChainID{}, false, fmt.Errorf("failed to read rollup config %s: %w", path, err)
		}
		var cfg rollup.Config
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, eth.ChainID{}, false, fmt.Errorf("failed to parse rollup config %s: %w", path, err)
		}
		return &cfg, eth.ChainIDFromBig(cfg.L2ChainID), true, nil
	}

	chainIDRaw := ctx.Uint64(flags.L2ChainID.Name)
	if chainIDRaw == 0 {
		return nil, eth.ChainID{}, false, ErrMissingChainConfig
	}
	chainID := eth.ChainIDFromUInt64(chainIDRaw)
	cfg, err := chainconfig.RollupConfigByChainID(chainID)
	if err != nil {
		return nil, eth.ChainID{}, false, err
	}
	return cfg, chainID, false, nil
}
