package derive

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"

	"github.com/l2verify/fault-proof/rollup"
)

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func brotliCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return append([]byte{channelVersionBrotli}, buf.Bytes()...)
}

func TestChannelReaderDecompressesZlibPayload(t *testing.T) {
	want := []byte("a batch of transactions")
	src := &fakeDataSource{data: [][]byte{zlibCompress(t, want)}}
	r := NewChannelReader(&rollup.Config{}, src)

	got, err := r.NextData()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestChannelReaderRejectsBrotliBeforeFjord checks the hardfork gate: a
// brotli-tagged payload seen before Fjord activation must be dropped, not
// decompressed.
func TestChannelReaderRejectsBrotliBeforeFjord(t *testing.T) {
	want := []byte("fjord-only payload")
	zlibGood := zlibCompress(t, []byte("fallback"))
	src := &fakeDataSource{data: [][]byte{brotliCompress(t, want), zlibGood}}
	r := NewChannelReader(&rollup.Config{}, src)

	got, err := r.NextData()
	require.NoError(t, err, "the brotli payload must be skipped, not surfaced as an error")
	require.Equal(t, []byte("fallback"), got)
}

func TestChannelReaderDecompressesBrotliPostFjord(t *testing.T) {
	fjordTime := uint64(0)
	cfg := &rollup.Config{FjordTime: &fjordTime}
	want := []byte("a brotli-compressed batch")
	src := &fakeDataSource{data: [][]byte{brotliCompress(t, want)}}
	r := NewChannelReader(cfg, src)

	got, err := r.NextData()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestChannelReaderSkipsUndecodablePayload(t *testing.T) {
	want := []byte("good payload")
	src := &fakeDataSource{data: [][]byte{{0xff, 0xff, 0xff}, zlibCompress(t, want)}}
	r := NewChannelReader(&rollup.Config{}, src)

	got, err := r.NextData()
	require.NoError(t, err)
	require.Equal(t, want, got)
}
