// Package transport defines the network communication abstractions of the
// message hub: the per-connection envelope surface (IConn) and the connector
// interfaces that inject transport specific listen/dial behavior.
//
// Subpackages:
//
//   - base: framing and the IConn implementation shared by all transports
//   - tcp:  TCP connectors with socket tuning
//   - unix: Unix domain socket connectors
//
// The package also provides error classification helpers. IsDisconnect
// identifies expected disconnect-class failures (peer reset, closed
// transport, truncated stream) which the protocol engine treats as normal
// connection termination; ErrMalformed marks payloads that could not be
// decoded while the stream itself stays intact.
package transport
