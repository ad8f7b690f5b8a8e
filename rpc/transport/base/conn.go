package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/dmbotnet/dmbn/rpc/serializer"
	"github.com/dmbotnet/dmbn/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport")

const (
	// headerSize is the length prefix in front of every serialized envelope
	headerSize = 4

	// defaultMaxEnvelopeSize bounds a single envelope on the wire
	defaultMaxEnvelopeSize = 4 * 1024 * 1024 // 4 MB
)

// conn implements transport.IConn on top of a net.Conn. Envelopes are framed
// with a 4 byte big endian length prefix followed by the serialized payload.
type conn struct {
	nc         net.Conn
	serializer serializer.IEnvelopeSerializer
	maxSize    int

	// writeMu serializes concurrent senders (loop replies vs. broadcasts)
	writeMu sync.Mutex

	bufferPool *sync.Pool

	closeOnce sync.Once
	connected atomic.Bool
}

// NewConn wraps an established net.Conn into a framed envelope connection.
func NewConn(nc net.Conn, ser serializer.IEnvelopeSerializer, socket common.SocketConf) transport.IConn {
	maxSize := socket.MaxEnvelopeSize
	if maxSize <= 0 {
		maxSize = defaultMaxEnvelopeSize
	}

	c := &conn{
		nc:         nc,
		serializer: ser,
		maxSize:    maxSize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, 4096)
			},
		},
	}
	c.connected.Store(true)
	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConn)
// --------------------------------------------------------------------------

func (c *conn) Send(env *common.Envelope) error {
	data, err := c.serializer.Serialize(*env)
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %v", err)
	}
	if len(data) > c.maxSize {
		return fmt.Errorf("envelope of %d bytes exceeds maximum of %d", len(data), c.maxSize)
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header, uint32(len(data)))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	b := net.Buffers{header, data}
	_, err = b.WriteTo(c.nc)
	return err
}

func (c *conn) Receive() (*common.Envelope, error) {
	// Get a buffer from the pool
	buf := c.bufferPool.Get().([]byte)
	defer c.bufferPool.Put(buf)

	// Read header
	if _, err := io.ReadFull(c.nc, buf[:headerSize]); err != nil {
		return nil, err
	}
	contentLength := int(binary.BigEndian.Uint32(buf[:headerSize]))

	if contentLength > c.maxSize {
		return nil, fmt.Errorf("inbound envelope of %d bytes exceeds maximum of %d", contentLength, c.maxSize)
	}

	// Check if buffer is large enough for the payload
	if len(buf) < contentLength {
		buf = make([]byte, contentLength)
	}

	// Read payload
	if _, err := io.ReadFull(c.nc, buf[:contentLength]); err != nil {
		return nil, err
	}

	// Deserialize. A decode failure does not invalidate the stream since the
	// frame was already fully consumed.
	var env common.Envelope
	if err := c.serializer.Deserialize(buf[:contentLength], &env); err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrMalformed, err)
	}

	return &env, nil
}

func (c *conn) ReceiveTimeout(timeout time.Duration) (*common.Envelope, error) {
	if err := c.nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %v", err)
	}
	defer func() {
		// Clear the deadline again, later receives block indefinitely
		_ = c.nc.SetReadDeadline(time.Time{})
	}()

	return c.Receive()
}

func (c *conn) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		err = c.nc.Close()
	})
	return err
}

func (c *conn) Connected() bool {
	return c.connected.Load()
}

func (c *conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}
