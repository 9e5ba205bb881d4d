package derive

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// attributesBatchProvider is satisfied by BatchMux, the pipeline's last pull
// source, producing one SingleBatch per step against a chosen L2 safe head.
type attributesBatchProvider interface {
	Origin() eth.L1BlockRef
	AddL1Block(ref eth.L1BlockRef)
	NextBatch(l2SafeHead eth.L2BlockRef, epoch eth.L1BlockRef) (*SingleBatch, error)
	Flush()
}

// AttributesWithParent pairs built payload attributes with the L2 parent
// they build on and the L1 block they were derived from, so a driver can
// tell whether it has reached the tip of what the current L1 view allows.
type AttributesWithParent struct {
	Attributes  *eth.PayloadAttributes
	Parent      eth.L2BlockRef
	DerivedFrom eth.L1BlockRef
}

// WithDepositsOnly returns a shallow clone with every non-deposit
// transaction stripped, used when a Holocene FlushChannel signal requires
// replacing a block with its deposits-only equivalent.
func (a *AttributesWithParent) WithDepositsOnly() *AttributesWithParent {
	clone := *a
	clone.Attributes = clone.Attributes.WithDepositsOnly()
	return &clone
}

// AttributesQueue is the derivation pipeline's last stage: it turns each
// SingleBatch pulled from the batch multiplexer into full payload
// attributes, tracking the system config across calls since
// PreparePayloadAttributes only mutates it on an epoch change. Grounded on
// op-node/rollup/derive/attributes_queue.go, adapted to this package's
// synchronous, non-blocking-call style (no context.Context, no RPC
// timeouts — every read already blocks on the preimage oracle) and to
// carry eth.SystemConfig explicitly instead of re-fetching it per call.
type AttributesQueue struct {
	log     log.Logger
	cfg     *rollup.Config
	builder *AttributesBuilder
	prev    attributesBatchProvider

	sysCfg eth.SystemConfig

	batch       *SingleBatch
	lastAttribs *AttributesWithParent
}

func NewAttributesQueue(logger log.Logger, cfg *rollup.Config, builder *AttributesBuilder, prev attributesBatchProvider, genesisSysCfg eth.SystemConfig) *AttributesQueue {
	return &AttributesQueue{log: logger, cfg: cfg, builder: builder, prev: prev, sysCfg: genesisSysCfg}
}

func (q *AttributesQueue) Origin() eth.L1BlockRef { return q.prev.Origin() }

// SystemConfig returns the system config active as of the last processed
// epoch, needed by a driver constructing a ResetSignal after a Reset- or
// Critical-classified error.
func (q *AttributesQueue) SystemConfig() eth.SystemConfig { return q.sysCfg }

func (q *AttributesQueue) AddL1Block(ref eth.L1BlockRef) { q.prev.AddL1Block(ref) }

func (q *AttributesQueue) NextAttributes(l2SafeHead eth.L2BlockRef, epoch eth.L1BlockRef) (*AttributesWithParent, error) {
	if q.batch == nil {
		batch, err := q.prev.NextBatch(l2SafeHead, epoch)
		if err != nil {
			return nil, err
		}
		q.batch = batch
	}

	attrs, err := q.createNextAttributes(q.batch, l2SafeHead)
	if err != nil {
		return nil, err
	}
	out := &AttributesWithParent{
		Attributes:  attrs,
		Parent:      l2SafeHead,
		DerivedFrom: q.Origin(),
	}
	q.lastAttribs = out
	q.batch = nil
	return out, nil
}

func (q *AttributesQueue) createNextAttributes(batch *SingleBatch, l2SafeHead eth.L2BlockRef) (*eth.PayloadAttributes, error) {
	if batch.ParentHash != l2SafeHead.Hash {
		return nil, NewResetError(fmt.Errorf("batch parent hash %s does not match safe head %s", batch.ParentHash, l2SafeHead.Hash))
	}
	if expected := l2SafeHead.Time + q.cfg.BlockTime; expected != batch.Timestamp {
		return nil, NewResetError(fmt.Errorf("batch timestamp %d does not match expected %d", batch.Timestamp, expected))
	}

	epoch := eth.L1BlockRef{Hash: batch.EpochHash, Number: batch.EpochNum}
	attrs, sysCfg, err := q.builder.PreparePayloadAttributes(l2SafeHead, epoch, q.sysCfg)
	if err != nil {
		return nil, err
	}
	q.sysCfg = sysCfg

	attrs.NoTxPool = true
	for _, tx := range batch.Transactions {
		attrs.Transactions = append(attrs.Transactions, hexutil.Bytes(tx))
	}

	if q.log != nil {
		q.log.Info("prepared payload attributes", "txs", len(attrs.Transactions), "timestamp", batch.Timestamp)
	}
	return attrs, nil
}

func (q *AttributesQueue) Flush() { q.prev.Flush() }

func (q *AttributesQueue) Reset() error {
	q.batch = nil
	q.lastAttribs = nil
	return EOF
}

// DepositsOnlyAttributes re-derives the last attributes generated for
// parent with every non-deposit transaction stripped, used by the driver
// when a Holocene FlushChannel signal invalidates the current channel
// mid-block.
func (q *AttributesQueue) DepositsOnlyAttributes(parent eth.BlockID, derivedFrom eth.L1BlockRef) (*AttributesWithParent, error) {
	if q.batch != nil {
		return nil, fmt.Errorf("unexpected buffered batch with parent hash %s", q.batch.ParentHash)
	}
	if q.lastAttribs == nil {
		return nil, fmt.Errorf("no attributes generated yet")
	}
	if derivedFrom != q.lastAttribs.DerivedFrom {
		return nil, fmt.Errorf("unexpected derivation origin: last %s, requested %s", q.lastAttribs.DerivedFrom, derivedFrom)
	}
	if parent != q.lastAttribs.Parent.ID() {
		return nil, fmt.Errorf("unexpected parent: last %s, requested %s", q.lastAttribs.Parent.ID(), parent)
	}
	q.prev.Flush()
	out := q.lastAttribs.WithDepositsOnly()
	q.lastAttribs = out
	return out, nil
}
