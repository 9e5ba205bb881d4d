package derive

import (
	"fmt"

	"github.com/l2verify/fault-proof/eth"
)

// channel accumulates frames sharing a ChannelID until it is ready for
// reading: the last frame has arrived and every lower-numbered frame is
// present. Grounded on kona's types::Channel (add_frame/is_ready/frame_data),
// generalized here to also serve the Holocene-strict ordering FrameQueue
// enforces before a frame ever reaches the bank.
type channel struct {
	id ChannelID

	openBlock eth.L1BlockRef

	closed              bool
	highestFrameNumber  uint16
	lastFrameNumber     uint16
	inputs              map[uint16]Frame
	estimatedSize       int

	highestL1Inclusion eth.L1BlockRef
}

func newChannel(id ChannelID, openBlock eth.L1BlockRef) *channel {
	return &channel{id: id, openBlock: openBlock, inputs: make(map[uint16]Frame)}
}

func (c *channel) openBlockNumber() uint64 { return c.openBlock.Number }

func (c *channel) size() int { return c.estimatedSize }

// addFrame ingests one frame, following the legacy (tolerant, deduplicating)
// admission rules: any frame number may arrive in any order, duplicates are
// rejected, and frames numbered at or beyond an already-seen closing frame
// are rejected.
func (c *channel) addFrame(f Frame, inclusion eth.L1BlockRef) error {
	if f.ID != c.id {
		return fmt.Errorf("frame id %s does not match channel id %s", f.ID, c.id)
	}
	if f.IsLast && c.closed {
		return fmt.Errorf("cannot add a second closing frame to channel %s", c.id)
	}
	if _, exists := c.inputs[f.Number]; exists {
		return fmt.Errorf("frame %d already ingested for channel %s", f.Number, c.id)
	}
	if c.closed && f.Number >= c.lastFrameNumber {
		return fmt.Errorf("frame %d is at or beyond the closing frame %d", f.Number, c.lastFrameNumber)
	}

	if f.IsLast {
		c.lastFrameNumber = f.Number
		c.closed = true
		if c.lastFrameNumber < c.highestFrameNumber {
			for num, frame := range c.inputs {
				if num >= c.lastFrameNumber {
					c.estimatedSize -= frame.Size()
					delete(c.inputs, num)
				}
			}
			c.highestFrameNumber = c.lastFrameNumber
		}
	}
	if f.Number > c.highestFrameNumber {
		c.highestFrameNumber = f.Number
	}
	if c.highestL1Inclusion.Number < inclusion.Number {
		c.highestL1Inclusion = inclusion
	}

	c.estimatedSize += f.Size()
	c.inputs[f.Number] = f
	return nil
}

func (c *channel) isReady() bool {
	if !c.closed {
		return false
	}
	if len(c.inputs) != int(c.lastFrameNumber)+1 {
		return false
	}
	for i := uint16(0); i <= c.lastFrameNumber; i++ {
		if _, ok := c.inputs[i]; !ok {
			return false
		}
	}
	return true
}

// frameData concatenates every frame's payload in frame-number order. Only
// valid once isReady reports true.
func (c *channel) frameData() ([]byte, error) {
	out := make([]byte, 0, c.estimatedSize)
	for i := uint16(0); i <= c.lastFrameNumber; i++ {
		f, ok := c.inputs[i]
		if !ok {
			return nil, fmt.Errorf("frame %d missing from channel %s", i, c.id)
		}
		out = append(out, f.Data...)
	}
	return out, nil
}
