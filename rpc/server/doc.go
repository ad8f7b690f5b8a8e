/*
Package server contains the connection hub: it accepts peer connections over
a pluggable transport, authenticates each peer against the user store and
then runs a message loop that dispatches network function invocations into
the registry.

# Lifecycle

A server is created with NewServer from its collaborators (config,
connector, serializer, user store, registry) and then driven through three
phases:

	s := server.NewServer(cfg, tcp.NewTCPServerConnector(), ser, store, reg)
	if err := s.Setup(); err != nil { ... }   // bind listener, configure store
	go func() { _ = s.Serve() }()             // accept loop, blocks
	...
	_ = s.Stop()                              // disconnect everyone, release

Setup and Serve each succeed at most once; Stop fails when the server is
not running. A single supervisor is expected to drive these transitions.

# Connection Handling

Every accepted connection runs in its own goroutine. The handshake must
complete within the configured timeout window, otherwise the connection is
dropped before it ever reaches the live set. Authenticated connections are
keyed by login; a second login under the same name replaces the first.

Inside the message loop only net band envelopes are accepted. Malformed
frames and out-of-band codes are answered with an error log envelope and
the connection stays open; transport failures end the loop.

# Broadcast

Broadcast fans a send method out to every live connection concurrently and
waits for all sends to finish. Failures are per connection and logged.
*/
package server
