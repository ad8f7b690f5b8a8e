// Package cmd implements the command-line interface for the dmbn message
// hub. It provides a hierarchical command structure with operations for
// running the hub server and for talking to one as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the hub server
//   - hub: Client commands (ping, call, listen)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dmbn -help for a list of all commands.
package cmd
