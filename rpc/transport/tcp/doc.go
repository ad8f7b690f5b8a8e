// Package tcp provides the TCP connectors for the transport layer. The
// server connector creates the listening socket, the client connector dials
// it; both apply the configured socket tuning (no-delay, buffer sizes,
// keep-alive, linger) to established connections.
package tcp
