package derive

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// batchStreamProvider is whatever BatchStream pulls decompressed channel
// payloads from.
type batchStreamProvider interface {
	Origin() eth.L1BlockRef
	NextData() ([]byte, error)
}

// BatchStream RLP-decodes a decompressed channel
// payload into a RawBatch, passing SingleBatches straight through and
// expanding a SpanBatch into its constituent SingleBatches, buffering at
// most one pending expansion at a time. Grounded on kona's
// stages::batch_stream (span: Option<SpanBatch> plus a single-batch
// buffer), generalized here to emit each expanded SingleBatch directly
// rather than keep the Rust version's unimplemented staging method.
type BatchStream struct {
	cfg     *rollup.Config
	prev    batchStreamProvider
	chainID uint64

	buffer []*SingleBatch
}

func NewBatchStream(cfg *rollup.Config, chainID uint64, prev batchStreamProvider) *BatchStream {
	return &BatchStream{cfg: cfg, prev: prev, chainID: chainID}
}

func (s *BatchStream) Origin() eth.L1BlockRef { return s.prev.Origin() }

// NextBatch returns the next SingleBatch, expanding a freshly-read
// SpanBatch into the buffer first if one is found.
func (s *BatchStream) NextBatch(parentHash common.Hash) (*SingleBatch, error) {
	if len(s.buffer) > 0 {
		b := s.buffer[0]
		s.buffer = s.buffer[1:]
		if b.ParentHash == (common.Hash{}) {
			b.ParentHash = parentHash
		}
		return b, nil
	}

	origin := s.prev.Origin()
	data, err := s.prev.NextData()
	if err != nil {
		return nil, err
	}
	raw, err := decodeRawBatch(data, s.chainID, origin.Number)
	if err != nil {
		return nil, NotEnoughData
	}
	if raw.Single != nil {
		return raw.Single, nil
	}

	expanded, err := raw.Span.Expand(s.cfg.Genesis.L2Time, s.cfg.BlockTime, s.cfg.Genesis.L1.Hash)
	if err != nil {
		return nil, NewCriticalError(err)
	}
	if len(expanded) == 0 {
		return nil, NotEnoughData
	}
	for _, b := range expanded {
		b.ParentHash = parentHash
	}
	s.buffer = expanded[1:]
	first := expanded[0]
	return first, nil
}

// Flush discards any buffered span-batch expansion, used when the batch
// validator rejects a span batch post-Holocene.
func (s *BatchStream) Flush() { s.buffer = nil }

func (s *BatchStream) Reset() error {
	s.buffer = nil
	return EOF
}
