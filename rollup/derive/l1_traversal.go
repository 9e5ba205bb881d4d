package derive

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/l2verify/fault-proof/client/l1"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// L1Traversal is the pipeline's leaf stage: it produces L1 block infos one
// at a time, in order, advancing only when told to, and replays
// L1SystemConfigAddress log events on each advance to keep the active
// SystemConfig current. Grounded on kona's stages::l1_traversal (pull one
// block, advance explicitly) generalized with a
// UpdateSystemConfigWithL1Receipts replay modeled on
// op-node/rollup/derive/attributes.go.
type L1Traversal struct {
	cfg *rollup.Config
	l1  l1.Oracle

	block  eth.L1BlockRef
	done   bool
	sysCfg eth.SystemConfig
}

func NewL1Traversal(cfg *rollup.Config, oracle l1.Oracle, origin eth.L1BlockRef, sysCfg eth.SystemConfig) *L1Traversal {
	return &L1Traversal{cfg: cfg, l1: oracle, block: origin, sysCfg: sysCfg, done: true}
}

func (t *L1Traversal) Origin() eth.L1BlockRef { return t.block }

func (t *L1Traversal) SystemConfig() eth.SystemConfig { return t.sysCfg }

// NextL1Block returns the current L1 block exactly once after each
// successful AdvanceOrigin; every other call returns EOF, including calls
// before the first advance (the origin given at construction or Reset is
// never returned here).
func (t *L1Traversal) NextL1Block() (eth.L1BlockRef, error) {
	if t.done {
		return eth.L1BlockRef{}, EOF
	}
	t.done = true
	return t.block, nil
}

// AdvanceOrigin moves the traversal to the given next L1 block, which must
// be the immediate child of the current one, and replays its
// L1SystemConfigAddress logs into the active SystemConfig.
func (t *L1Traversal) AdvanceOrigin(next eth.L1BlockRef, receipts types.Receipts) error {
	if next.Number != t.block.Number+1 {
		return NewResetError(fmt.Errorf("non-contiguous L1 advance: have %s, got %s", t.block, next))
	}
	if next.ParentHash != t.block.Hash {
		return NewResetError(fmt.Errorf("L1 reorg detected: block %s does not build on %s", next, t.block))
	}
	if err := UpdateSystemConfigWithL1Receipts(&t.sysCfg, receipts, t.cfg, next.Time); err != nil {
		return NewCriticalError(fmt.Errorf("failed to replay system config updates for %s: %w", next, err))
	}
	t.block = next
	t.done = false
	return nil
}

func (t *L1Traversal) Reset(origin eth.L1BlockRef, sysCfg eth.SystemConfig) error {
	t.block = origin
	t.sysCfg = sysCfg
	t.done = true
	return EOF
}
