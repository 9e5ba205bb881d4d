package preimage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestHintWriterReaderRoundTrip(t *testing.T) {
	cs, ss := newLoopback()
	writer := NewHintWriter(cs)
	reader := NewHintReader(ss)

	var received Hint
	handler := HintHandlerFn(func(h Hint) error {
		received = h
		return nil
	})

	done := make(chan struct{})
	go func() {
		writer.Hint(Hint("block-header 0xdeadbeef"))
		close(done)
	}()

	require.NoError(t, reader.NextHint(handler))
	<-done
	require.Equal(t, Hint("block-header 0xdeadbeef"), received)
}

func TestSplitHint(t *testing.T) {
	name, args := SplitHint(Hint("transactions 0xabc 7"))
	require.Equal(t, "transactions", name)
	require.Equal(t, "0xabc 7", args)

	name, args = SplitHint(Hint("no-args"))
	require.Equal(t, "no-args", name)
	require.Equal(t, "", args)
}

func TestHintAcknowledgedDespiteHandlerError(t *testing.T) {
	cs, ss := newLoopback()
	writer := NewHintWriter(cs)
	reader := NewHintReader(ss)

	handler := HintHandlerFn(func(h Hint) error {
		return errBoom
	})

	done := make(chan struct{})
	go func() {
		writer.Hint(Hint("bad-hint"))
		close(done)
	}()

	err := reader.NextHint(handler)
	require.ErrorIs(t, err, errBoom)
	<-done
}
