// Package rpc provides the protocol substrate of the dmbn message hub. It
// acts as the communication layer between clients and servers: persistent
// connections exchange framed envelopes carrying authentication,
// network function invocations, log lines and file transfers.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the system,
//     including the Envelope protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets) and the shared length-prefix framing.
//
//   - serializer: Envelope serialization with multiple format options
//     (Binary, JSON, GOB) for converting between Envelope objects and byte arrays.
//
//   - registry: The network function registry that maps invocation names to
//     handlers, with typed argument decoding and access middleware.
//
//   - server: The hub server: connection acceptance, the auth handshake,
//     per-connection message loops and broadcast coordination.
//
//   - client: The hub client: connect/handshake, background envelope
//     routing and the client-side send surface.
package rpc
