// Package driver runs the pull-based pipeline forward to a target L2 block
// number, executing every batch of attributes it produces and retrying a
// Holocene-era execution failure deposits-only before giving up. Grounded on
// kona's driver core loop (advance_to_target), adapted to this repository's
// synchronous, oracle-backed stage chain instead of an async channel.
package driver

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/l2verify/fault-proof/client/l1"
	"github.com/l2verify/fault-proof/client/l2"
	"github.com/l2verify/fault-proof/client/l2/engine"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
	"github.com/l2verify/fault-proof/rollup/derive"
)

// Driver owns the pipeline and the L2 chain-data provider and steps the
// pipeline forward one prepared block at a time until it reaches a target L2
// block number.
type Driver struct {
	log      log.Logger
	cfg      *rollup.Config
	chainCfg *params.ChainConfig
	l1Oracle l1.Oracle
	l2       *l2.Provider
	pipeline *derive.Pipeline
}

func NewDriver(logger log.Logger, cfg *rollup.Config, l1Oracle l1.Oracle, l2Provider *l2.Provider, pipeline *derive.Pipeline) *Driver {
	return &Driver{
		log:      logger,
		cfg:      cfg,
		chainCfg: cfg.ToEVMChainConfig(),
		l1Oracle: l1Oracle,
		l2:       l2Provider,
		pipeline: pipeline,
	}
}

// AdvanceToTarget drives the pipeline until the L2 safe head reaches target,
// returning the resulting L2BlockRef and its output root. safeHead is the
// agreed starting point (already known to be correct).
func (d *Driver) AdvanceToTarget(safeHead eth.L2BlockRef, target uint64) (eth.L2BlockRef, common.Hash, error) {
	if safeHead.Number >= target {
		outputRoot, err := d.l2.OutputRootByHash(safeHead.Hash)
		return safeHead, outputRoot, err
	}

	for safeHead.Number < target {
		result := d.pipeline.Step(safeHead)

		switch result.Kind {
		case derive.StepAdvancedOrigin:
			continue

		case derive.StepOriginAdvanceErr:
			if result.Err == derive.EOF {
				d.log.Warn("L1 data exhausted before reaching target", "safe_head", safeHead, "target", target)
				return safeHead, common.Hash{}, fmt.Errorf("L1 data exhausted at L2 block %d, short of target %d", safeHead.Number, target)
			}
			continue

		case derive.StepFailed:
			if derive.IsCritical(result.Err) {
				return safeHead, common.Hash{}, fmt.Errorf("critical pipeline failure at L2 block %d: %w", safeHead.Number, result.Err)
			}
			if err := d.resetPipeline(safeHead); err != nil {
				return safeHead, common.Hash{}, fmt.Errorf("failed to reset pipeline after %w: %w", result.Err, err)
			}
			continue

		case derive.StepPreparedAttributes:
			next, err := d.executeAttributes(safeHead, result.Attributes)
			if err != nil {
				return safeHead, common.Hash{}, err
			}
			d.pipeline.Next()
			safeHead = next
			d.log.Info("advanced L2 safe head", "number", safeHead.Number, "hash", safeHead.Hash)
		}
	}

	outputRoot, err := d.l2.OutputRootByHash(safeHead.Hash)
	if err != nil {
		return safeHead, common.Hash{}, err
	}
	return safeHead, outputRoot, nil
}

// executeAttributes runs attrs against the parent block, retrying
// deposits-only if the block is Holocene-era and the first attempt fails.
func (d *Driver) executeAttributes(parent eth.L2BlockRef, attrs *derive.AttributesWithParent) (eth.L2BlockRef, error) {
	next, err := d.execute(parent, attrs.Attributes)
	if err == nil {
		return next, nil
	}
	if !d.cfg.IsHolocene(uint64(attrs.Attributes.Timestamp)) {
		d.log.Warn("invalid pre-Holocene block, cannot recover", "parent", parent, "err", err)
		return parent, fmt.Errorf("invalid block built on %s (pre-Holocene, cannot recover): %w", parent, err)
	}

	d.log.Warn("block execution failed, flushing channel and retrying deposits-only", "parent", parent, "err", err)
	if err := d.pipeline.Signal(derive.FlushChannelSignal{}); err != nil {
		return parent, fmt.Errorf("failed to flush channel after execution failure: %w", err)
	}
	retryAttrs, err := d.pipeline.DepositsOnlyAttributes(parent.ID(), attrs.DerivedFrom)
	if err != nil {
		return parent, fmt.Errorf("failed to build deposits-only attributes after flush: %w", err)
	}
	next, err = d.execute(parent, retryAttrs.Attributes)
	if err != nil {
		return parent, fmt.Errorf("deposits-only retry also failed to produce a valid block on %s: %w", parent, err)
	}
	return next, nil
}

// execute runs one block's attributes against the parent block's state,
// returning the resulting L2BlockRef.
func (d *Driver) execute(parent eth.L2BlockRef, attrs *eth.PayloadAttributes) (eth.L2BlockRef, error) {
	parentHeader := d.l2.HeaderByHash(parent.Hash)
	state := d.l2.NewBlockState(parentHeader.Root)

	exec, err := engine.NewExecutor(d.chainCfg, parentHeader, attrs, state, d.l2, d.l1Oracle)
	if err != nil {
		return eth.L2BlockRef{}, fmt.Errorf("failed to start block builder: %w", err)
	}
	for i, raw := range attrs.Transactions {
		var tx types.Transaction
		if err := tx.UnmarshalBinary(raw); err != nil {
			return eth.L2BlockRef{}, fmt.Errorf("failed to decode tx %d: %w", i, err)
		}
		if _, err := exec.AddTx(&tx); err != nil {
			return eth.L2BlockRef{}, fmt.Errorf("failed to apply tx %d: %w", i, err)
		}
	}
	block, _, err := exec.Assemble()
	if err != nil {
		return eth.L2BlockRef{}, fmt.Errorf("failed to assemble block: %w", err)
	}

	return d.l2.L2BlockRefByHash(block.Hash())
}

// resetPipeline re-derives the safe head's L1 origin (from the L1 oracle)
// and the system config active there (systemConfigAt), and sends a
// ResetSignal rewinding every stage to resume from there.
func (d *Driver) resetPipeline(safeHead eth.L2BlockRef) error {
	origin := d.l1Oracle.HeaderByBlockHash(safeHead.L1Origin.Hash)
	return d.pipeline.Signal(derive.ResetSignal{
		L2SafeHead:   safeHead,
		L1Origin:     eth.L1BlockRefFromInfo(origin),
		SystemConfig: d.systemConfigAt(safeHead),
	})
}

// systemConfigAt returns the system config that should be active once the
// pipeline resumes from safeHead: genesis's own config if safeHead is
// genesis itself, otherwise whatever the pipeline last tracked (the driver
// never rewinds to a safe head earlier than the pipeline's own last-known
// origin, since Reset/Activation always fire forward from StepFailed).
func (d *Driver) systemConfigAt(safeHead eth.L2BlockRef) eth.SystemConfig {
	if safeHead.Number == d.cfg.Genesis.L2.Number {
		return d.cfg.Genesis.SystemConfig
	}
	return d.pipeline.SystemConfig()
}
