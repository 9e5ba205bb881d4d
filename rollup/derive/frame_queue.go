package derive

import (
	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// frameQueueProvider is whatever FrameQueue pulls raw DA payloads from.
type frameQueueProvider interface {
	Origin() eth.L1BlockRef
	NextData() ([]byte, error)
}

// FrameQueue pulls one DA payload at a time from
// L1Retrieval, parses it into frames, and yields those frames one at a
// time. A payload that fails to parse is dropped — a malformed batcher
// submission simply contributes nothing, it never aborts derivation.
//
// Post-Holocene it additionally enforces strict intra-block ordering: the
// first frame ever seen for a channel ID must be frame 0, and any frame
// that arrives out of order relative to the channel currently being
// assembled drops that entire in-progress channel rather than buffering
// it. Pre-Holocene ordering is tolerant; per-frame deduplication happens
// downstream in the channel bank itself.
//
// Grounded on kona's stages::frame_queue (pull-and-buffer a Vec<Frame>)
// generalized with the ordering split spec'd for the Holocene hardfork.
type FrameQueue struct {
	cfg  *rollup.Config
	prev frameQueueProvider

	queue []Frame

	strictChannel   ChannelID
	strictHaveFrame bool
	strictNext      uint16
}

func NewFrameQueue(cfg *rollup.Config, prev frameQueueProvider) *FrameQueue {
	return &FrameQueue{cfg: cfg, prev: prev}
}

func (q *FrameQueue) Origin() eth.L1BlockRef { return q.prev.Origin() }

// NextFrame returns the next frame in arrival order, refilling the
// internal queue from the previous stage as needed.
func (q *FrameQueue) NextFrame() (Frame, error) {
	for len(q.queue) == 0 {
		data, err := q.prev.NextData()
		if err != nil {
			return Frame{}, err
		}
		frames, err := ParseFrames(data)
		if err != nil {
			continue
		}
		q.queue = frames
	}
	next := q.queue[0]
	q.queue = q.queue[1:]

	if q.cfg.IsHolocene(q.prev.Origin().Time) {
		if !q.acceptStrict(next) {
			return q.NextFrame()
		}
	}
	return next, nil
}

// acceptStrict applies the post-Holocene in-order admission rule: once a
// channel is being assembled, only its next expected frame number may
// pass; anything else drops the in-progress channel and restarts
// tracking from the new frame.
func (q *FrameQueue) acceptStrict(f Frame) bool {
	if !q.strictHaveFrame || f.ID != q.strictChannel {
		if f.Number != 0 {
			return false
		}
		q.strictChannel = f.ID
		q.strictHaveFrame = true
		q.strictNext = 1
		return true
	}
	if f.Number != q.strictNext {
		q.strictHaveFrame = false
		return false
	}
	if f.IsLast {
		q.strictHaveFrame = false
	} else {
		q.strictNext++
	}
	return true
}

func (q *FrameQueue) Reset() error {
	q.queue = nil
	q.strictHaveFrame = false
	return EOF
}
