package derive

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// maxRawBatchesSize bounds the decompressed size of one channel's payload.
// A channel whose contents decompress past this limit is dropped rather
// than accepted — an unbounded decompression sink is not something a
// fault-proof verifier can afford to run.
const maxRawBatchesSize = 100_000_000

// channelReaderProvider is whatever ChannelReader pulls compressed channel
// payloads from.
type channelReaderProvider interface {
	Origin() eth.L1BlockRef
	NextData() ([]byte, error)
}

// ChannelReader decompresses one channel's payload
// at a time. The compression algorithm is selected by the payload's first
// byte: zlib pre-Fjord, brotli post-Fjord. A channel that fails to
// decompress, or whose decompressed size exceeds the bound, is dropped —
// this is a per-channel failure, not a pipeline-fatal one.
type ChannelReader struct {
	cfg  *rollup.Config
	prev channelReaderProvider
}

func NewChannelReader(cfg *rollup.Config, prev channelReaderProvider) *ChannelReader {
	return &ChannelReader{cfg: cfg, prev: prev}
}

func (r *ChannelReader) Origin() eth.L1BlockRef { return r.prev.Origin() }

// NextData returns the next channel's decompressed byte stream, skipping
// over any channel that fails to decompress.
func (r *ChannelReader) NextData() ([]byte, error) {
	for {
		compressed, err := r.prev.NextData()
		if err != nil {
			return nil, err
		}
		out, err := r.decompress(compressed)
		if err != nil {
			continue
		}
		return out, nil
	}
}

// channelVersionBrotli is the post-Fjord leading byte that marks a channel
// payload as brotli-compressed; anything else is read as a zlib stream
// with no version prefix, matching the pre-Fjord wire format.
const channelVersionBrotli = 0x01

func (r *ChannelReader) decompress(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, fmt.Errorf("empty channel payload")
	}
	var reader io.Reader
	if compressed[0] == channelVersionBrotli {
		if !r.cfg.IsFjord(r.prev.Origin().Time) {
			return nil, fmt.Errorf("brotli-compressed channel seen before Fjord activation")
		}
		reader = brotli.NewReader(bytes.NewReader(compressed[1:]))
	} else {
		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("invalid zlib channel payload: %w", err)
		}
		defer zr.Close()
		reader = zr
	}
	out, err := io.ReadAll(io.LimitReader(reader, maxRawBatchesSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress channel payload: %w", err)
	}
	if len(out) > maxRawBatchesSize {
		return nil, fmt.Errorf("decompressed channel payload exceeds %d bytes", maxRawBatchesSize)
	}
	return out, nil
}

func (r *ChannelReader) Reset() error { return EOF }
