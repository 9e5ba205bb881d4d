package preimage

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// loopback is an io.ReadWriter that lets a test drive the client and server
// halves of the protocol against each other without real file descriptors.
// Each direction is an io.Pipe, so a read blocks until the other side writes.
type loopback struct {
	toServerR *io.PipeReader
	toServerW *io.PipeWriter
	toClientR *io.PipeReader
	toClientW *io.PipeWriter
}

type clientSide struct{ l *loopback }
type serverSide struct{ l *loopback }

func (c clientSide) Read(p []byte) (int, error)  { return c.l.toClientR.Read(p) }
func (c clientSide) Write(p []byte) (int, error) { return c.l.toServerW.Write(p) }

func (s serverSide) Read(p []byte) (int, error)  { return s.l.toServerR.Read(p) }
func (s serverSide) Write(p []byte) (int, error) { return s.l.toClientW.Write(p) }

func newLoopback() (clientSide, serverSide) {
	l := &loopback{}
	l.toServerR, l.toServerW = io.Pipe()
	l.toClientR, l.toClientW = io.Pipe()
	return clientSide{l}, serverSide{l}
}

type mapGetter map[[32]byte][]byte

func (m mapGetter) Get(key Key) ([]byte, error) {
	v, ok := m[key.PreimageKey()]
	if !ok {
		return nil, errors.New("key not found")
	}
	return v, nil
}

func TestOracleClientServerRoundTrip(t *testing.T) {
	cs, ss := newLoopback()
	client := NewOracleClient(cs)
	server := NewOracleServer(ss)

	key := Sha256Key([32]byte{1, 2, 3})
	getter := mapGetter{key.PreimageKey(): []byte("preimage payload")}

	done := make(chan []byte, 1)
	go func() {
		done <- client.Get(key)
	}()

	require.NoError(t, server.NextPreimageRequest(getter))
	require.Equal(t, []byte("preimage payload"), <-done)
}

func TestOracleClientEmptyPreimage(t *testing.T) {
	cs, ss := newLoopback()
	client := NewOracleClient(cs)
	server := NewOracleServer(ss)

	key := Sha256Key([32]byte{9})
	getter := mapGetter{key.PreimageKey(): nil}

	done := make(chan []byte, 1)
	go func() {
		done <- client.Get(key)
	}()

	require.NoError(t, server.NextPreimageRequest(getter))
	require.Empty(t, <-done)
}
