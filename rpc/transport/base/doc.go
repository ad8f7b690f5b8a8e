// Package base implements the transport-independent part of the connection
// layer: framing of serialized envelopes with a 4 byte big endian length
// prefix and the IConn implementation shared by all connectors.
//
// Transport specific behavior (how a listener is created, how a connection is
// dialed and tuned) is injected through the connector interfaces defined in
// the transport package; see the tcp and unix subpackages.
package base
