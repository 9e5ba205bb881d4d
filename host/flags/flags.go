// Package flags defines the host binary's command-line surface, grounded on
// op-program/host/flags/flags.go, trimmed to the boot inputs and local
// preimage store options this offline verifier actually needs: no L1/L2
// RPC addresses, no exec/server-mode split, no interop dependency-set flag.
package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const envVarPrefix = "FAULT_PROOF"

func prefixEnvVar(name string) []string {
	return []string{fmt.Sprintf("%s_%s", envVarPrefix, name)}
}

var (
	L1Head = &cli.StringFlag{
		Name:     "l1.head",
		Usage:    "Hash of the L1 head block. Derivation stops after this block is processed.",
		EnvVars:  prefixEnvVar("L1_HEAD"),
		Required: true,
	}
	L2OutputRoot = &cli.StringFlag{
		Name:     "l2.outputroot",
		Usage:    "Agreed L2 output root to start derivation from.",
		EnvVars:  prefixEnvVar("L2_OUTPUT_ROOT"),
		Required: true,
	}
	L2Claim = &cli.StringFlag{
		Name:     "l2.claim",
		Usage:    "Claimed L2 output root to validate.",
		EnvVars:  prefixEnvVar("L2_CLAIM"),
		Required: true,
	}
	L2BlockNumber = &cli.Uint64Flag{
		Name:     "l2.blocknumber",
		Usage:    "L2 block number the claim is from.",
		EnvVars:  prefixEnvVar("L2_BLOCK_NUM"),
		Required: true,
	}
	L2ChainID = &cli.Uint64Flag{
		Name:    "l2.chainid",
		Usage:   "L2 chain ID, used to look up the rollup config unless rollup.config is set.",
		EnvVars: prefixEnvVar("L2_CHAINID"),
	}
	RollupConfig = &cli.StringFlag{
		Name:    "rollup.config",
		Usage:   "Path to a rollup config JSON file, for chains with no built-in entry.",
		EnvVars: prefixEnvVar("ROLLUP_CONFIG"),
	}
	DataDir = &cli.StringFlag{
		Name:    "datadir",
		Usage:   "Directory to read preimage data from. Default uses in-memory storage, which must be pre-populated by the caller.",
		EnvVars: prefixEnvVar("DATADIR"),
	}
)

// Flags is the full list of flags the host CLI registers.
var Flags = []cli.Flag{
	L1Head,
	L2OutputRoot,
	L2Claim,
	L2BlockNumber,
	L2ChainID,
	RollupConfig,
	DataDir,
}
