// Package msgconn wraps a stream connection with CBOR message framing.
// Each Send writes one self-describing CBOR value; each Receive decodes
// one. CBOR items are self-delimiting, so no length prefix is needed.
package msgconn

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var ErrClosed = errors.New("connection is closed")

type Conn struct {
	nc  net.Conn
	dec *cbor.Decoder

	wmu sync.Mutex // serializes writers
	enc *cbor.Encoder

	closeOnce sync.Once
	closed    bool
}

func New(nc net.Conn) *Conn {
	return &Conn{
		nc:  nc,
		dec: cbor.NewDecoder(nc),
		enc: cbor.NewEncoder(nc),
	}
}

// Send encodes one message onto the connection. Sends from concurrent
// goroutines are serialized; a send on a closed connection fails with
// ErrClosed.
func (c *Conn) Send(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.enc.Encode(v)
}

// Receive decodes the next message into v, blocking until a full message
// arrives or the connection fails. Only one goroutine may call Receive.
func (c *Conn) Receive(v any) error {
	return c.dec.Decode(v)
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		c.closed = true
		c.wmu.Unlock()
		err = c.nc.Close()
	})
	return err
}

func (c *Conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}

// IsDecodeErr reports whether err is a semantic decoding failure: the
// CBOR item was well-formed and fully consumed but did not fit the target
// type. Framing is intact after such an error, so the connection remains
// usable.
func IsDecodeErr(err error) bool {
	var ute *cbor.UnmarshalTypeError
	return errors.As(err, &ute)
}

// IsClosedErr reports whether err is an ordinary end-of-connection
// condition rather than a protocol fault.
func IsClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}
