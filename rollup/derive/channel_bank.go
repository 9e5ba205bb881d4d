package derive

import (
	"bytes"
	"sort"

	"github.com/l2verify/fault-proof/eth"
	"github.com/l2verify/fault-proof/rollup"
)

// channelBankProvider is whatever ChannelBank pulls frames from.
type channelBankProvider interface {
	Origin() eth.L1BlockRef
	NextFrame() (Frame, error)
}

// ChannelBank multiplexes between Holocene-strict
// and legacy admission/eviction: accumulates frames into channels keyed by
// channel ID, evicts channels that exceed the configured byte budget or
// time out (first-frame L1 block number + channel_timeout), and yields
// completed channels' concatenated byte streams. Legacy ordering yields by
// ascending channel ID with silent drops on overflow; Holocene ordering
// yields strictly FIFO by first-frame arrival. Grounded on kona's
// stages::channel_bank (HashMap<ChannelID,Channel> + FIFO eviction queue).
type ChannelBank struct {
	cfg  *rollup.Config
	prev channelBankProvider

	channels map[ChannelID]*channel
	order    []ChannelID // first-frame arrival order

	totalSize int
}

func NewChannelBank(cfg *rollup.Config, prev channelBankProvider) *ChannelBank {
	return &ChannelBank{cfg: cfg, prev: prev, channels: make(map[ChannelID]*channel)}
}

func (b *ChannelBank) Origin() eth.L1BlockRef { return b.prev.Origin() }

// NextData returns the next completed channel's concatenated frame data,
// pulling and ingesting frames from the previous stage until one channel
// becomes ready (or the previous stage is exhausted).
func (b *ChannelBank) NextData() ([]byte, error) {
	if id, ok := b.nextReady(); ok {
		return b.take(id)
	}
	for {
		f, err := b.prev.NextFrame()
		if err != nil {
			return nil, err
		}
		b.ingest(f)
		if id, ok := b.nextReady(); ok {
			return b.take(id)
		}
	}
}

func (b *ChannelBank) ingest(f Frame) {
	origin := b.prev.Origin()
	c, ok := b.channels[f.ID]
	if !ok {
		if f.Number != 0 && b.cfg.IsHolocene(origin.Time) {
			return
		}
		c = newChannel(f.ID, origin)
		b.channels[f.ID] = c
		b.order = append(b.order, f.ID)
	}
	if origin.Number > c.openBlockNumber()+b.cfg.ChannelTimeoutBedrock {
		b.evict(f.ID)
		return
	}
	before := c.size()
	if err := c.addFrame(f, origin); err != nil {
		return
	}
	b.totalSize += c.size() - before
	b.prune(origin)
}

// prune evicts the oldest channels (by first-frame arrival) until the
// total buffered size is back under the configured budget, and drops any
// channel whose timeout has elapsed relative to the current origin.
func (b *ChannelBank) prune(origin eth.L1BlockRef) {
	for _, id := range b.order {
		if c, ok := b.channels[id]; ok && origin.Number > c.openBlockNumber()+b.cfg.ChannelTimeoutBedrock {
			b.evict(id)
		}
	}
	for b.totalSize > int(b.cfg.MaxChannelBankSize()) && len(b.order) > 0 {
		b.evict(b.order[0])
	}
}

func (b *ChannelBank) evict(id ChannelID) {
	c, ok := b.channels[id]
	if !ok {
		return
	}
	b.totalSize -= c.size()
	delete(b.channels, id)
	for i, oid := range b.order {
		if oid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *ChannelBank) nextReady() (ChannelID, bool) {
	if b.cfg.IsHolocene(b.prev.Origin().Time) {
		for _, id := range b.order {
			if c, ok := b.channels[id]; ok && c.isReady() {
				return id, true
			}
			return ChannelID{}, false // FIFO: only the oldest channel may complete next
		}
		return ChannelID{}, false
	}
	var ready []ChannelID
	for id, c := range b.channels {
		if c.isReady() {
			ready = append(ready, id)
		}
	}
	if len(ready) == 0 {
		return ChannelID{}, false
	}
	sort.Slice(ready, func(i, j int) bool { return bytes.Compare(ready[i][:], ready[j][:]) < 0 })
	return ready[0], true
}

func (b *ChannelBank) take(id ChannelID) ([]byte, error) {
	c := b.channels[id]
	data, err := c.frameData()
	b.evict(id)
	if err != nil {
		return nil, NewCriticalError(err)
	}
	return data, nil
}

func (b *ChannelBank) Reset() error {
	b.channels = make(map[ChannelID]*channel)
	b.order = nil
	b.totalSize = 0
	return EOF
}
