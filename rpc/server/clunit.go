package server

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/dmbotnet/dmbn/rpc/transport"
)

// initialLogin is the placeholder identity of a connection unit before the
// handshake adopted the real login.
const initialLogin = "init"

// fileChunkSize is the payload size of one file transfer envelope
const fileChunkSize = 64 * 1024

// ClUnit is the server-side state of one live peer connection: the
// authenticated identity and the envelope send/receive surface used by the
// protocol engine. Units are owned by the Server from acceptance until
// removal and are always passed by reference.
//
// ClUnit implements registry.Caller so it is handed to dispatched network
// functions as their connection context.
type ClUnit struct {
	login string
	conn  transport.IConn
}

// newClUnit wraps a fresh connection with the placeholder identity
func newClUnit(conn transport.IConn) *ClUnit {
	return &ClUnit{
		login: initialLogin,
		conn:  conn,
	}
}

// setLogin adopts the authenticated identity. Called exactly once, by the
// handshake, before the unit is published to the live connection set.
func (c *ClUnit) setLogin(login string) {
	c.login = login
}

// Login returns the authenticated identity of the peer
func (c *ClUnit) Login() string {
	return c.login
}

// Connected reports whether the unit has not been disconnected yet
func (c *ClUnit) Connected() bool {
	return c.conn.Connected()
}

// RemoteAddr returns the address of the peer
func (c *ClUnit) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Disconnect releases the transport. It is idempotent.
func (c *ClUnit) Disconnect() error {
	return c.conn.Disconnect()
}

// --------------------------------------------------------------------------
// Send Surface
// --------------------------------------------------------------------------

// SendEnvelope sends one envelope to the peer
func (c *ClUnit) SendEnvelope(env *common.Envelope) error {
	return c.conn.Send(env)
}

// SendNet sends a network function invocation to the peer
func (c *ClUnit) SendNet(name string, args map[string]any) error {
	return c.conn.Send(common.NewNetRequest(name, args))
}

// SendLog sends a log band envelope with the given code to the peer
func (c *ClUnit) SendLog(code common.ResponseCode, message string) error {
	if !code.IsLog() {
		return fmt.Errorf("code %s is not a log code", code)
	}
	return c.conn.Send(common.NewLog(code, message))
}

// SendLogDebug sends a debug level log line to the peer
func (c *ClUnit) SendLogDebug(message string) error {
	return c.conn.Send(common.NewLog(common.LogDeb, message))
}

// SendLogInfo sends an info level log line to the peer
func (c *ClUnit) SendLogInfo(message string) error {
	return c.conn.Send(common.NewLog(common.LogInf, message))
}

// SendLogWarning sends a warning level log line to the peer
func (c *ClUnit) SendLogWarning(message string) error {
	return c.conn.Send(common.NewLog(common.LogWar, message))
}

// SendLogError sends an error level log line to the peer
func (c *ClUnit) SendLogError(message string) error {
	return c.conn.Send(common.NewLogError(message))
}

// SendFile streams the file at path to the peer as a sequence of chunk
// envelopes terminated by a file-end envelope. The peer sees the file under
// its base name, or under name if non empty.
func (c *ClUnit) SendFile(path, name string) error {
	if name == "" {
		name = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	buf := make([]byte, fileChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := c.conn.Send(common.NewFileChunk(name, chunk)); err != nil {
				return err
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %v", path, err)
		}
	}

	return c.conn.Send(common.NewFileEnd(name))
}
