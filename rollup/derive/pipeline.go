package derive

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/l2verify/fault-proof/client/l1"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// ResetSignal rewinds every pipeline stage to a consistent starting point:
// the L2 safe head to resume building on, the L1 origin its epoch is
// anchored to, and the system config active as of that origin.
type ResetSignal struct {
	L2SafeHead   eth.L2BlockRef
	L1Origin     eth.L1BlockRef
	SystemConfig eth.SystemConfig
}

// ActivationSignal is Reset's sibling: it carries the same fields, but
// marks that a hardfork boundary is being crossed at L1Origin. Every
// pipeline stage derives its hardfork gating from cfg.Is* against the
// current timestamp rather than from separate activation state, so
// materializing it is the same stage rebuild a plain Reset performs.
type ActivationSignal struct {
	L2SafeHead   eth.L2BlockRef
	L1Origin     eth.L1BlockRef
	SystemConfig eth.SystemConfig
}

// FlushChannelSignal is sent by the driver when a Holocene-era executed
// block fails post-validation: the channel currently feeding the
// attributes queue is forward-invalidated, and the driver is expected to
// resubmit a deposits-only version of the failing block.
type FlushChannelSignal struct{}

// StepResultKind classifies the outcome of one Pipeline.Step call.
type StepResultKind int

const (
	// StepPreparedAttributes means attributes are ready; retrieve them
	// with Peek or Next.
	StepPreparedAttributes StepResultKind = iota
	// StepAdvancedOrigin means the L1 origin moved forward one block; the
	// driver should call Step again.
	StepAdvancedOrigin
	// StepOriginAdvanceErr means the pipeline could not advance its L1
	// origin further right now (Err is EOF once the known L1 chain is
	// exhausted).
	StepOriginAdvanceErr
	// StepFailed means a stage produced a Reset- or Critical-classified
	// error; the driver must inspect Err and signal Reset or Activation.
	StepFailed
)

// StepResult is the outcome of one Pipeline.Step call.
type StepResult struct {
	Kind       StepResultKind
	Attributes *AttributesWithParent
	Err        error
}

// Pipeline composes L1Traversal through AttributesQueue into the single
// pull-based derivation loop the driver steps forward. The preimage
// oracle only resolves blocks by hash, so the pipeline precomputes the
// ordered L1 chain from its starting origin to the boot's L1 head once at
// construction and walks it forward one block per origin advance.
// Grounded on kona's derivation Pipeline trait (step/peek/next/signal),
// adapted to this package's pull-stage chain instead of an async stream.
type Pipeline struct {
	log log.Logger
	cfg *rollup.Config
	l1  l1.Oracle

	l1Chain    []eth.L1BlockRef
	l1ChainPos int

	traversal *L1Traversal
	retrieval *L1Retrieval
	frames    *FrameQueue
	channels  *ChannelBank
	reader    *ChannelReader
	stream    *BatchStream
	batches   *BatchMux
	builder   *AttributesBuilder
	attrs     *AttributesQueue

	pending *AttributesWithParent
}

// NewPipeline builds the pipeline rooted at startOriginHash, which must
// identify a block reachable from l1Head by walking parent hashes down to
// cfg.Genesis.L1. sysCfg is the system config active as of that origin.
func NewPipeline(logger log.Logger, cfg *rollup.Config, oracle l1.Oracle, l1Head, startOriginHash common.Hash, sysCfg eth.SystemConfig) (*Pipeline, error) {
	chain, err := buildL1Chain(oracle, l1Head, startOriginHash, cfg.Genesis.L1)
	if err != nil {
		return nil, err
	}
	idx := len(chain) - 1 // buildL1Chain always ends the ascending chain at startOriginHash on success

	p := &Pipeline{log: logger, cfg: cfg, l1: oracle, l1Chain: chain, l1ChainPos: idx}
	p.buildStages(chain[idx], sysCfg)
	p.batches.AddL1Block(chain[idx])
	return p, nil
}

// buildL1Chain walks backward from l1Head via parent hashes until it
// reaches startOrigin, then reverses the result into ascending order. This
// is the only way to enumerate "the next L1 block" against a preimage
// oracle that can only resolve a block by a hash it's already given.
// genesisL1 is only a safety bound: if the walk passes its block number
// without having found startOrigin, the boot inputs are inconsistent.
func buildL1Chain(oracle l1.Oracle, l1Head, startOrigin common.Hash, genesisL1 eth.BlockID) ([]eth.L1BlockRef, error) {
	var chain []eth.L1BlockRef
	cur := l1Head
	for {
		info := oracle.HeaderByBlockHash(cur)
		ref := eth.L1BlockRefFromInfo(info)
		chain = append(chain, ref)
		if ref.Hash == startOrigin {
			break
		}
		if ref.Number <= genesisL1.Number {
			return nil, fmt.Errorf("walked below genesis L1 block %s without reaching start origin %s (stopped at %s)", genesisL1, startOrigin, ref)
		}
		cur = ref.ParentHash
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (p *Pipeline) buildStages(origin eth.L1BlockRef, sysCfg eth.SystemConfig) {
	p.traversal = NewL1Traversal(p.cfg, p.l1, origin, sysCfg)
	p.retrieval = NewL1Retrieval(p.cfg, p.l1, p.traversal)
	p.frames = NewFrameQueue(p.cfg, p.retrieval)
	p.channels = NewChannelBank(p.cfg, p.frames)
	p.reader = NewChannelReader(p.cfg, p.channels)
	p.stream = NewBatchStream(p.cfg, p.cfg.L2ChainID.Uint64(), p.reader)
	p.batches = NewBatchMux(p.cfg, p.stream)
	p.builder = NewAttributesBuilder(p.cfg, p.l1)
	p.attrs = NewAttributesQueue(p.log, p.cfg, p.builder, p.batches, sysCfg)
	p.pending = nil
}

// Origin returns the L1 block the pipeline is currently anchored to.
func (p *Pipeline) Origin() eth.L1BlockRef { return p.traversal.Origin() }

// SystemConfig returns the system config the attributes queue has tracked
// through the most recently processed epoch.
func (p *Pipeline) SystemConfig() eth.SystemConfig { return p.attrs.SystemConfig() }

// Peek returns the last prepared attributes without consuming them, or
// nil if Step has not yet produced any.
func (p *Pipeline) Peek() *AttributesWithParent { return p.pending }

// Next returns and clears the last prepared attributes, or nil if none
// are pending.
func (p *Pipeline) Next() *AttributesWithParent {
	out := p.pending
	p.pending = nil
	return out
}

// Step advances the pipeline by exactly one unit of work: if attributes
// are already pending it returns them again; otherwise it asks the
// attributes queue for the next block built on l2SafeHead, and if that
// needs more L1 data, advances the L1 origin by one block instead.
func (p *Pipeline) Step(l2SafeHead eth.L2BlockRef) StepResult {
	if p.pending != nil {
		return StepResult{Kind: StepPreparedAttributes, Attributes: p.pending}
	}

	attrs, err := p.attrs.NextAttributes(l2SafeHead, p.traversal.Origin())
	if err == nil {
		p.pending = attrs
		return StepResult{Kind: StepPreparedAttributes, Attributes: attrs}
	}
	if IsReset(err) || IsCritical(err) {
		return StepResult{Kind: StepFailed, Err: err}
	}

	return p.advanceOrigin()
}

// advanceOrigin pulls the next block in the precomputed L1 chain and
// folds it into every stage that tracks the active origin.
func (p *Pipeline) advanceOrigin() StepResult {
	if p.l1ChainPos+1 >= len(p.l1Chain) {
		return StepResult{Kind: StepOriginAdvanceErr, Err: EOF}
	}
	next := p.l1Chain[p.l1ChainPos+1]
	_, receipts := p.l1.ReceiptsByBlockHash(next.Hash)

	if err := p.traversal.AdvanceOrigin(next, receipts); err != nil {
		if IsReset(err) || IsCritical(err) {
			return StepResult{Kind: StepFailed, Err: err}
		}
		return StepResult{Kind: StepOriginAdvanceErr, Err: err}
	}
	if blk, err := p.traversal.NextL1Block(); err == nil {
		p.batches.AddL1Block(blk)
	}
	p.l1ChainPos++
	return StepResult{Kind: StepAdvancedOrigin}
}

// Signal dispatches a ResetSignal, ActivationSignal, or FlushChannelSignal
// to the pipeline. Reset and Activation both rebuild the stage chain from
// scratch at the given L1 origin, since every stage's hardfork behavior is
// derived dynamically from cfg and the active timestamp rather than from
// separate activation state.
func (p *Pipeline) Signal(sig interface{}) error {
	switch s := sig.(type) {
	case ResetSignal:
		return p.reset(s.L1Origin, s.SystemConfig)
	case ActivationSignal:
		return p.reset(s.L1Origin, s.SystemConfig)
	case FlushChannelSignal:
		p.attrs.Flush()
		p.pending = nil
		return nil
	default:
		return fmt.Errorf("unknown pipeline signal %T", sig)
	}
}

func (p *Pipeline) reset(origin eth.L1BlockRef, sysCfg eth.SystemConfig) error {
	idx := -1
	for i, ref := range p.l1Chain {
		if ref.Hash == origin.Hash {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("reset target L1 origin %s is not on the known L1 chain", origin)
	}
	p.l1ChainPos = idx
	p.buildStages(p.l1Chain[idx], sysCfg)
	p.batches.AddL1Block(p.l1Chain[idx])
	return nil
}

// DepositsOnlyAttributes re-derives the last prepared attributes for
// parent with every non-deposit transaction stripped, used by the driver
// immediately after sending a FlushChannelSignal.
func (p *Pipeline) DepositsOnlyAttributes(parent eth.BlockID, derivedFrom eth.L1BlockRef) (*AttributesWithParent, error) {
	out, err := p.attrs.DepositsOnlyAttributes(parent, derivedFrom)
	if err != nil {
		return nil, err
	}
	p.pending = out
	return out, nil
}
