package preimage

import (
	"fmt"
	"io"
	"os"
)

// FileChannel is a bidirectional byte channel backed by a pair of file
// descriptors: one to read responses from, one to write requests to. It
// mirrors kona's PipeHandle, adapted to Go's blocking os.File reads/writes
// instead of a polling future.
type FileChannel struct {
	r *os.File
	w *os.File
}

func NewFileChannel(r, w *os.File) *FileChannel {
	return &FileChannel{r: r, w: w}
}

func (c *FileChannel) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *FileChannel) Write(p []byte) (int, error) { return c.w.Write(p) }

func (c *FileChannel) Close() error {
	rErr := c.r.Close()
	wErr := c.w.Close()
	if rErr != nil {
		return rErr
	}
	return wErr
}

// The conventional file descriptors the client reads/writes the preimage
// oracle protocol on (ClientPreimageRFD/ClientPreimageWFD, fd 3/4) and the
// hint channel on (ClientHintRFD/ClientHintWFD, fd 5/6).
const (
	ClientPreimageRFD = 3
	ClientPreimageWFD = 4
	ClientHintRFD     = 5
	ClientHintWFD     = 6
)

// ClientPreimageChannel opens the conventional preimage oracle channel from
// the client process's perspective: read responses on fd 3, write requests
// on fd 4.
func ClientPreimageChannel() *FileChannel {
	return NewFileChannel(os.NewFile(ClientPreimageRFD, "preimage-r"), os.NewFile(ClientPreimageWFD, "preimage-w"))
}

// ClientHinterChannel opens the conventional hint channel from the client
// process's perspective: read acks on fd 5, write hints on fd 6.
func ClientHinterChannel() *FileChannel {
	return NewFileChannel(os.NewFile(ClientHintRFD, "hint-r"), os.NewFile(ClientHintWFD, "hint-w"))
}

// CreateBidirectionalChannel opens two pipe pairs and cross-wires them into
// a host-side and client-side FileChannel, so a host and client running in
// the same process talk over the identical blocking read/write protocol
// they'd use across a real exec boundary's file descriptors.
func CreateBidirectionalChannel() (client, host *FileChannel, err error) {
	clientR, hostW, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	hostR, clientW, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	return NewFileChannel(clientR, clientW), NewFileChannel(hostR, hostW), nil
}

// readExact blocks until exactly len(buf) bytes have been read, matching the
// blocking read_exact semantics both sides of the protocol rely on.
func readExact(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return fmt.Errorf("failed to read %d bytes: %w", len(buf), err)
	}
	return nil
}

// writeAll blocks until the entire buffer has been written.
func writeAll(w io.Writer, buf []byte) error {
	_, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("failed to write %d bytes: %w", len(buf), err)
	}
	return nil
}
