// Package unix provides the Unix domain socket connectors for the transport
// layer. The endpoint is interpreted as a filesystem path; an existing socket
// file is removed before binding.
package unix
