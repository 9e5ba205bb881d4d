// Package client is the verifier's entrypoint: read the boot inputs off the
// preimage oracle, derive and execute L2 blocks forward from the agreed
// output root to the claimed block number, and compare the result against
// the claim. Adapted from op-program/client/{program,preinterop}.go, trimmed
// to this program's single (preinterop) derivation path.
package client

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"

	"github.com/l2verify/fault-proof/client/boot"
	"github.com/l2verify/fault-proof/client/claim"
	"github.com/l2verify/fault-proof/client/driver"
	"github.com/l2verify/fault-proof/client/interop"
	"github.com/l2verify/fault-proof/client/l1"
	"github.com/l2verify/fault-proof/client/l2"
	"github.com/l2verify/fault-proof/preimage"
	"github.com/l2verify/fault-proof/rollup/derive"
)

// Config selects which of the program's two derivation modes RunProgram
// takes: the single-chain path this program fully implements, or the
// multi-chain interop consolidation path it only stubs out.
type Config struct {
	InteropEnabled bool
}

// Main runs the program against the conventional preimage oracle and hint
// file descriptors and exits the process: 0 once the claim is confirmed
// valid, 1 once it's confirmed invalid, 2 on any other failure to complete
// derivation.
func Main(logger log.Logger) {
	preimageOracle := preimage.ClientPreimageChannel()
	preimageHinter := preimage.ClientHinterChannel()

	if err := RunProgram(logger, preimageOracle, preimageHinter, Config{}); errors.Is(err, claim.ErrClaimNotValid) {
		logger.Error("claim is invalid", "err", err)
		os.Exit(1)
	} else if err != nil {
		logger.Error("program failed", "err", err)
		os.Exit(2)
	} else {
		logger.Info("claim successfully verified")
		os.Exit(0)
	}
}

// RunProgram drives one full verification run over an already-open
// preimage oracle and hint channel pair.
func RunProgram(logger log.Logger, preimageOracle io.ReadWriter, preimageHinter io.ReadWriter, cfg Config) error {
	if cfg.InteropEnabled {
		return interop.RunInteropProgram()
	}

	pClient := preimage.NewOracleClient(preimageOracle)
	hClient := preimage.NewHintWriter(preimageHinter)

	l1Oracle := l1.NewCachingOracle(l1.NewPreimageOracle(pClient, hClient))
	l2Provider := l2.NewProvider(pClient, hClient)

	info, err := boot.Load(pClient)
	if err != nil {
		return fmt.Errorf("failed to load boot info: %w", err)
	}
	logger.Info("program bootstrapped",
		"l1Head", info.L1Head, "l2OutputRoot", info.L2OutputRoot,
		"l2Claim", info.L2Claim, "l2ClaimBlockNumber", info.L2ClaimBlockNumber,
		"l2ChainID", info.L2ChainID)

	safeHeadHash, err := l2Provider.BlockHashByOutputRoot(info.L2OutputRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve agreed output root to a block: %w", err)
	}
	safeHead, err := l2Provider.L2BlockRefByHash(safeHeadHash)
	if err != nil {
		return fmt.Errorf("failed to load agreed safe head %s: %w", safeHeadHash, err)
	}

	// The system config is never re-derived from scratch: the batcher address
	// and gas limit are re-asserted into every L2 block's own L1-info deposit
	// and header, and the remaining fields (fee-vault overhead/scalar,
	// Holocene/Isthmus fee params) only ever change via an L1 log the
	// pipeline itself observes going forward, so genesis's values are the
	// correct starting point for everything Step doesn't overwrite.
	sysCfg, err := l2Provider.SystemConfigAtHash(safeHead.Hash, info.RollupConfig.Genesis.SystemConfig)
	if err != nil {
		return fmt.Errorf("failed to reconstruct system config at safe head %s: %w", safeHead, err)
	}

	pipeline, err := derive.NewPipeline(logger, info.RollupConfig, l1Oracle, info.L1Head, safeHead.L1Origin.Hash, sysCfg)
	if err != nil {
		return fmt.Errorf("failed to build derivation pipeline: %w", err)
	}

	d := driver.NewDriver(logger, info.RollupConfig, l1Oracle, l2Provider, pipeline)
	finalHead, outputRoot, err := d.AdvanceToTarget(safeHead, info.L2ClaimBlockNumber)
	if err != nil {
		return fmt.Errorf("failed to advance to target block %d: %w", info.L2ClaimBlockNumber, err)
	}
	logger.Info("derivation complete", "head", finalHead, "outputRoot", outputRoot)

	return claim.Validate(logger, info.L2Claim, outputRoot)
}
