package derive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// fakeFrameSource feeds a fixed, ordered slice of frames to a ChannelBank
// through the same channelBankProvider surface FrameQueue would, one frame
// per call, advancing its L1 origin on request.
type fakeFrameSource struct {
	origin eth.L1BlockRef
	frames []Frame
	next   int
}

func (s *fakeFrameSource) Origin() eth.L1BlockRef { return s.origin }

func (s *fakeFrameSource) NextFrame() (Frame, error) {
	if s.next >= len(s.frames) {
		return Frame{}, EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func testChannelID(b byte) ChannelID {
	var id ChannelID
	id[0] = b
	return id
}

func TestChannelBankAssemblesCompletedChannel(t *testing.T) {
	id := testChannelID(1)
	src := &fakeFrameSource{
		origin: eth.L1BlockRef{Number: 100},
		frames: []Frame{
			{ID: id, Number: 0, Data: []byte("hello "), IsLast: false},
			{ID: id, Number: 1, Data: []byte("world"), IsLast: true},
		},
	}
	cfg := rollupConfigForChannelBank()
	bank := NewChannelBank(&cfg, src)

	data, err := bank.NextData()
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), data)
}

// TestChannelBankTimeoutBoundary exercises the exact edge of
// origin.Number > c.openBlockNumber()+ChannelTimeoutBedrock: with the origin
// exactly at openBlock+timeout the channel must still accept frames and
// complete, and one block past that it must be evicted.
func TestChannelBankTimeoutBoundary(t *testing.T) {
	const timeout = uint64(10)
	id := testChannelID(2)

	t.Run("completes one block before timeout elapses", func(t *testing.T) {
		src := &fakeFrameSource{
			origin: eth.L1BlockRef{Number: 100},
			frames: []Frame{
				{ID: id, Number: 0, Data: []byte("a"), IsLast: false},
			},
		}
		cfg := rollupConfigForChannelBank()
		cfg.ChannelTimeoutBedrock = timeout
		bank := NewChannelBank(&cfg, src)
		bank.ingest(Frame{ID: id, Number: 0, Data: []byte("a"), IsLast: false})

		// Advance the origin to exactly the last block that must still
		// accept this channel's frames: openBlock + timeout.
		src.origin = eth.L1BlockRef{Number: 100 + timeout}
		bank.ingest(Frame{ID: id, Number: 1, Data: []byte("b"), IsLast: true})

		data, err := bank.take(id)
		require.NoError(t, err)
		require.Equal(t, []byte("ab"), data)
	})

	t.Run("evicts once the origin passes the timeout boundary", func(t *testing.T) {
		src := &fakeFrameSource{origin: eth.L1BlockRef{Number: 100}}
		cfg := rollupConfigForChannelBank()
		cfg.ChannelTimeoutBedrock = timeout
		bank := NewChannelBank(&cfg, src)
		bank.ingest(Frame{ID: id, Number: 0, Data: []byte("a"), IsLast: false})
		require.Contains(t, bank.channels, id)

		// One block past the boundary: openBlock + timeout + 1.
		src.origin = eth.L1BlockRef{Number: 100 + timeout + 1}
		bank.ingest(Frame{ID: id, Number: 1, Data: []byte("b"), IsLast: true})

		require.NotContains(t, bank.channels, id, "channel must be evicted once its timeout has elapsed")
	})
}

func TestChannelBankHoloceneEnforcesFifoOrder(t *testing.T) {
	first := testChannelID(1)
	second := testChannelID(2)
	cfg := rollupConfigForChannelBank()
	holoceneTime := uint64(0)
	cfg.HoloceneTime = &holoceneTime

	src := &fakeFrameSource{origin: eth.L1BlockRef{Number: 100, Time: 0}}
	bank := NewChannelBank(&cfg, src)

	// Second channel completes first, but Holocene ordering must not
	// surface it until the first (older) channel is also ready.
	bank.ingest(Frame{ID: first, Number: 0, Data: []byte("x"), IsLast: false})
	bank.ingest(Frame{ID: second, Number: 0, Data: []byte("y"), IsLast: true})

	_, ready := bank.nextReady()
	require.False(t, ready, "a younger channel completing first must not unblock FIFO ordering")

	bank.ingest(Frame{ID: first, Number: 1, Data: []byte("z"), IsLast: true})
	readyID, ready := bank.nextReady()
	require.True(t, ready)
	require.Equal(t, first, readyID)
}

func rollupConfigForChannelBank() rollup.Config {
	return rollup.Config{ChannelTimeoutBedrock: 10}
}
