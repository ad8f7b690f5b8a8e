// Package common provides core data structures and utilities shared across
// the message hub system. It defines the wire protocol elements, configuration
// structures and the logging setup used by the other packages.
//
// The package focuses on:
//   - The Envelope protocol unit and the closed ResponseCode enumeration
//   - Configuration structures for the server and client components
//   - Custom logging implementation with consistent formatting
//
// Key Components:
//
//   - ResponseCode: Closed enumeration of stable integer codes discriminating
//     the kind of an envelope. Codes are grouped into four bands
//     (authentication, network function requests, file transfer, logging)
//     with predicate methods to test band membership.
//
//   - Envelope: The single tagged message unit exchanged over a connection.
//     Well known fields (credentials, function name, log message, file chunk)
//     are typed struct fields; everything else travels in the free-form Args
//     mapping which is flattened onto the top level of the wire mapping.
//     Factory functions create the envelopes of each band.
//
//   - ServerConfig / ClientConfig: Comprehensive configuration for the server
//     and client, including handshake timeout, connection cap, credential
//     store settings and socket tuning.
//
//   - Logger: Custom logging implementation providing consistent formatting
//     across the application packages.
package common
