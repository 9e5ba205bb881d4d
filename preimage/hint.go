package preimage

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Hint is a free-form string sent ahead of a batch of related preimage
// requests, telling the host what it is about to be asked for so it can
// prefetch and verify the underlying data before the client blocks on it.
type Hint string

// Hinter is the client-side interface to the hint channel.
type Hinter interface {
	Hint(hint Hint)
}

// HintWriter writes hints to the host and blocks for the one-byte
// acknowledgement before returning, so the client never races ahead of the
// host's prefetch.
type HintWriter struct {
	rw io.ReadWriter
}

var _ Hinter = (*HintWriter)(nil)

func NewHintWriter(rw io.ReadWriter) *HintWriter {
	return &HintWriter{rw: rw}
}

func (h *HintWriter) Hint(hint Hint) {
	if err := h.hint(hint); err != nil {
		panic(fmt.Errorf("failed to write hint %q: %w", hint, err))
	}
}

func (h *HintWriter) hint(hint Hint) error {
	payload := []byte(hint)
	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if err := writeAll(h.rw, append(lengthBuf[:], payload...)); err != nil {
		return err
	}

	var ack [1]byte
	return readExact(h.rw, ack[:])
}

// HintHandler resolves a hint on the host side: typically by issuing the
// underlying fetches that a following batch of preimage requests will need,
// so they are ready before the client asks.
type HintHandler interface {
	Handle(hint Hint) error
}

// HintHandlerFn adapts a plain function to HintHandler.
type HintHandlerFn func(hint Hint) error

func (f HintHandlerFn) Handle(hint Hint) error { return f(hint) }

// HintReader reads one hint at a time from the client, hands it to a
// handler, and acknowledges it so the client can proceed.
type HintReader struct {
	rw io.ReadWriter
}

func NewHintReader(rw io.ReadWriter) *HintReader {
	return &HintReader{rw: rw}
}

// NextHint blocks for one hint, dispatches it, and writes the
// acknowledgement byte. A non-nil handler error is still acknowledged: the
// client has no way to observe a failed hint beyond the eventual failure of
// the preimage request it was prefetching for.
func (h *HintReader) NextHint(handler HintHandler) error {
	var lengthBuf [4]byte
	if err := readExact(h.rw, lengthBuf[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	payload := make([]byte, length)
	if length > 0 {
		if err := readExact(h.rw, payload); err != nil {
			return err
		}
	}

	hintErr := handler.Handle(Hint(payload))

	if err := writeAll(h.rw, []byte{0}); err != nil {
		return fmt.Errorf("failed to write hint ack: %w", err)
	}
	return hintErr
}

// SplitHint splits a hint's space-separated "name arg0 arg1 ..." form into
// its name and raw argument string, matching the convention the client's
// per-domain hint constructors (BlockHeaderHint, TransactionsHint, ...)
// encode with.
func SplitHint(hint Hint) (name string, args string) {
	s := string(hint)
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}
