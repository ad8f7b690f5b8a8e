package transport

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/dmbotnet/dmbn/rpc/common"
)

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// IConn is the send/receive surface of one established peer connection.
// Envelopes are framed and serialized by the implementation; the protocol
// engine above never sees raw bytes.
//
// Receive may be called by at most one goroutine at a time. Send is safe for
// concurrent use (replies from the message loop and broadcasts may overlap).
type IConn interface {
	// Send serializes and writes one envelope to the peer
	Send(env *common.Envelope) error
	// Receive blocks until one full envelope is available or the transport
	// fails. A decodable-but-malformed payload is reported as an error
	// wrapping ErrMalformed; the connection stays usable.
	Receive() (*common.Envelope, error)
	// ReceiveTimeout behaves like Receive but gives up after the given
	// duration with an error for which IsTimeout reports true
	ReceiveTimeout(timeout time.Duration) (*common.Envelope, error)
	// Disconnect releases the transport resources. It is idempotent.
	Disconnect() error
	// Connected reports whether Disconnect has not yet been called
	Connected() bool
	// RemoteAddr returns the address of the peer
	RemoteAddr() net.Addr
}

// --------------------------------------------------------------------------
// Connectors (dependency injection for tcp, unix, ...)
// --------------------------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the given endpoint
	Connect(endpoint string) (net.Conn, error)

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// --------------------------------------------------------------------------
// Error classification
// --------------------------------------------------------------------------

// ErrMalformed marks receive errors caused by an undecodable envelope payload.
// The connection itself is still intact and the caller may continue receiving.
var ErrMalformed = errors.New("malformed envelope")

// IsDisconnect reports whether an error is an expected disconnect-class
// failure (peer reset, aborted connection, truncated read, closed transport).
// These are treated as normal connection termination, not as errors.
func IsDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

// IsTimeout reports whether an error is a transport deadline expiry.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
