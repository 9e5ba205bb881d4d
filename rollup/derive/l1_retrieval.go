package derive

import (
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/l2verify/fault-proof/client/l1"
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// L1Retrieval, given one L1 block (from L1Traversal), yields every
// byte-bearing data-availability payload posted to the
// rollup's batch inbox in that block, in transaction order — calldata
// payloads directly, blob payloads only after they've been pulled and
// KZG-verified against their versioned hash. Grounded on kona's
// stages::l1_retrieval pull-one-payload-per-step shape.
type L1Retrieval struct {
	cfg *rollup.Config
	l1  l1.Oracle

	prev *L1Traversal

	data   [][]byte
	origin eth.L1BlockRef
}

func NewL1Retrieval(cfg *rollup.Config, oracle l1.Oracle, prev *L1Traversal) *L1Retrieval {
	return &L1Retrieval{cfg: cfg, l1: oracle, prev: prev}
}

func (r *L1Retrieval) Origin() eth.L1BlockRef { return r.prev.Origin() }

// NextData returns the next undelivered DA payload for the current L1
// origin, fetching and decoding the block's transactions the first time
// it's called for a given origin.
func (r *L1Retrieval) NextData() ([]byte, error) {
	origin := r.prev.Origin()
	if origin != r.origin {
		payloads, err := r.openBlock(origin)
		if err != nil {
			return nil, err
		}
		r.data = payloads
		r.origin = origin
	}
	if len(r.data) == 0 {
		return nil, EOF
	}
	next := r.data[0]
	r.data = r.data[1:]
	return next, nil
}

func (r *L1Retrieval) openBlock(origin eth.L1BlockRef) ([][]byte, error) {
	info, txs := r.l1.TransactionsByBlockHash(origin.Hash)
	var payloads [][]byte
	for _, tx := range txs {
		if tx.To() == nil || *tx.To() != r.cfg.BatchInboxAddress {
			continue
		}
		switch tx.Type() {
		case types.BlobTxType:
			for i, h := range tx.BlobHashes() {
				blob := r.l1.GetBlob(eth.L1BlockRefFromInfo(info), eth.IndexedBlobHash{Index: uint64(i), Hash: h})
				payloads = append(payloads, blob[:])
			}
		default:
			if len(tx.Data()) > 0 {
				payloads = append(payloads, tx.Data())
			}
		}
	}
	return payloads, nil
}
