package preimage

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Oracle is the client-side interface used throughout the program to fetch
// a preimage for a key, panicking callers get to decide how to handle
// failures since a missing preimage always indicates a host/client protocol
// bug or a malicious host, never a recoverable condition mid-execution.
type Oracle interface {
	Get(key Key) []byte
}

// OracleFn adapts a plain function to the Oracle interface, used by tests
// that want to serve canned responses without standing up a real channel.
type OracleFn func(key Key) []byte

func (f OracleFn) Get(key Key) []byte { return f(key) }

// OracleClient is the high level interface to the preimage oracle channel:
// write the 32-byte key, read the 8-byte big-endian length prefix, then
// read exactly that many bytes of response.
type OracleClient struct {
	rw io.ReadWriter
}

var _ Oracle = (*OracleClient)(nil)

func NewOracleClient(rw io.ReadWriter) *OracleClient {
	return &OracleClient{rw: rw}
}

func (c *OracleClient) Get(key Key) []byte {
	data, err := c.get(key)
	if err != nil {
		panic(fmt.Errorf("failed to get preimage for key %x: %w", key.PreimageKey(), err))
	}
	return data
}

func (c *OracleClient) get(key Key) ([]byte, error) {
	raw := key.PreimageKey()
	if err := writeAll(c.rw, raw[:]); err != nil {
		return nil, fmt.Errorf("failed to write preimage key: %w", err)
	}

	var lengthBuf [8]byte
	if err := readExact(c.rw, lengthBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read preimage length: %w", err)
	}
	length := binary.BigEndian.Uint64(lengthBuf[:])
	if length == 0 {
		return nil, nil
	}

	payload := make([]byte, length)
	if err := readExact(c.rw, payload); err != nil {
		return nil, fmt.Errorf("failed to read preimage payload: %w", err)
	}
	return payload, nil
}

// PreimageGetter resolves a key to its preimage on the host side, returning
// an error rather than panicking since a missing preimage there can often
// be retried or surfaced as a protocol error to the client.
type PreimageGetter interface {
	Get(key Key) ([]byte, error)
}

// PreimageGetterFn adapts a plain function to PreimageGetter.
type PreimageGetterFn func(key Key) ([]byte, error)

func (f PreimageGetterFn) Get(key Key) ([]byte, error) { return f(key) }

// OracleServer answers one preimage request at a time on the host side of
// the channel: read the 32-byte key, resolve it, then write the length
// prefix and payload back.
type OracleServer struct {
	rw io.ReadWriter
}

func NewOracleServer(rw io.ReadWriter) *OracleServer {
	return &OracleServer{rw: rw}
}

// NextPreimageRequest blocks for one request from the client, resolves it
// via getter, and writes the response. Returns the error from the I/O layer
// verbatim so callers can detect a closed pipe (io.EOF) and exit cleanly.
func (s *OracleServer) NextPreimageRequest(getter PreimageGetter) error {
	var raw [32]byte
	if err := readExact(s.rw, raw[:]); err != nil {
		return err
	}
	key, err := ParseKey(raw)
	if err != nil {
		return fmt.Errorf("invalid preimage key request: %w", err)
	}

	value, err := getter.Get(key)
	if err != nil {
		return fmt.Errorf("failed to get preimage for key %x: %w", raw, err)
	}

	var lengthBuf [8]byte
	binary.BigEndian.PutUint64(lengthBuf[:], uint64(len(value)))
	if err := writeAll(s.rw, lengthBuf[:]); err != nil {
		return fmt.Errorf("failed to write preimage length: %w", err)
	}
	if len(value) > 0 {
		if err := writeAll(s.rw, value); err != nil {
			return fmt.Errorf("failed to write preimage payload: %w", err)
		}
	}
	return nil
}
