package derive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// fakeDataSource feeds a fixed slice of raw DA payloads to whatever reads
// through the frameQueueProvider/channelReaderProvider surface.
type fakeDataSource struct {
	origin eth.L1BlockRef
	data   [][]byte
	next   int
}

func (s *fakeDataSource) Origin() eth.L1BlockRef { return s.origin }

func (s *fakeDataSource) NextData() ([]byte, error) {
	if s.next >= len(s.data) {
		return nil, EOF
	}
	d := s.data[s.next]
	s.next++
	return d, nil
}

// encodeFrames reproduces the on-chain frame-batch wire format ParseFrames
// decodes: a version byte followed by each frame's own encoding.
func encodeFrames(t *testing.T, frames ...Frame) []byte {
	t.Helper()
	out := []byte{DerivationVersion0}
	for _, f := range frames {
		out = append(out, f.Encode()...)
	}
	return out
}

func TestFrameQueueYieldsFramesInOrder(t *testing.T) {
	id := testChannelID(1)
	payload := encodeFrames(t, Frame{ID: id, Number: 0, Data: []byte("a"), IsLast: true})
	src := &fakeDataSource{data: [][]byte{payload}}
	q := NewFrameQueue(&rollup.Config{}, src)

	f, err := q.NextFrame()
	require.NoError(t, err)
	require.Equal(t, id, f.ID)
	require.Equal(t, []byte("a"), f.Data)

	_, err = q.NextFrame()
	require.ErrorIs(t, err, EOF)
}

func TestFrameQueueDropsUnparseablePayloadsAndContinues(t *testing.T) {
	id := testChannelID(1)
	good := encodeFrames(t, Frame{ID: id, Number: 0, Data: []byte("a"), IsLast: true})
	src := &fakeDataSource{data: [][]byte{{0xff, 0xff, 0xff}, good}}
	q := NewFrameQueue(&rollup.Config{}, src)

	f, err := q.NextFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("a"), f.Data)
}

// TestFrameQueueHoloceneStrictOrdering exercises the post-Holocene rule:
// the first frame seen for a channel must be frame 0, and an out-of-order
// frame drops the in-progress channel rather than buffering it.
func TestFrameQueueHoloceneStrictOrdering(t *testing.T) {
	holoceneTime := uint64(0)
	cfg := &rollup.Config{HoloceneTime: &holoceneTime}

	id := testChannelID(1)
	// Frame 1 arrives before frame 0 was ever seen: must be rejected outright.
	outOfOrder := encodeFrames(t, Frame{ID: id, Number: 1, Data: []byte("x"), IsLast: false})
	src := &fakeDataSource{origin: eth.L1BlockRef{Time: 0}, data: [][]byte{outOfOrder}}
	q := NewFrameQueue(cfg, src)

	_, err := q.NextFrame()
	require.ErrorIs(t, err, EOF, "an out-of-order opening frame must be dropped entirely, not surfaced")
}

func TestFrameQueueHoloceneAcceptsInOrderChannel(t *testing.T) {
	holoceneTime := uint64(0)
	cfg := &rollup.Config{HoloceneTime: &holoceneTime}

	id := testChannelID(1)
	frame0 := encodeFrames(t, Frame{ID: id, Number: 0, Data: []byte("a"), IsLast: false})
	frame1 := encodeFrames(t, Frame{ID: id, Number: 1, Data: []byte("b"), IsLast: true})
	src := &fakeDataSource{origin: eth.L1BlockRef{Time: 0}, data: [][]byte{frame0, frame1}}
	q := NewFrameQueue(cfg, src)

	f0, err := q.NextFrame()
	require.NoError(t, err)
	require.Equal(t, uint16(0), f0.Number)

	f1, err := q.NextFrame()
	require.NoError(t, err)
	require.Equal(t, uint16(1), f1.Number)
}
