package common

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxClientsUnlimited disables the connection cap.
const MaxClientsUnlimited = -1

// --------------------------------------------------------------------------
// Socket tuning configuration (shared between server and client)
// --------------------------------------------------------------------------

// SocketConf holds socket level tuning knobs applied to accepted and dialed
// connections. A zero value means "leave the OS default".
type SocketConf struct {
	// TCPNoDelay disables Nagle's algorithm
	TCPNoDelay bool
	// ReadBufferSize is the socket read buffer size in bytes
	ReadBufferSize int
	// WriteBufferSize is the socket write buffer size in bytes
	WriteBufferSize int
	// TCPKeepAliveSec enables TCP keep-alive with the given period in seconds
	TCPKeepAliveSec int
	// TCPLingerSec sets the TCP linger time in seconds (-1 = OS default)
	TCPLingerSec int
	// MaxEnvelopeSize is the maximum size in bytes of a single serialized
	// envelope accepted from the wire (0 = default)
	MaxEnvelopeSize int
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// StoreConf configures the credential and access store.
type StoreConf struct {
	// Path is the location of the store database file (":memory:" for tests)
	Path string
	// OwnerBasePassword is the initial password of the seeded owner account
	OwnerBasePassword string
	// BaseAccess are the access flags granted to newly registered users
	BaseAccess map[string]bool
}

// ServerConfig holds all configuration parameters of the message hub server.
type ServerConfig struct {
	// ServerName is the display name echoed to clients after the handshake
	ServerName string

	// Endpoint is the address the server listens on (e.g. "0.0.0.0:5000",
	// or a socket path for the unix transport)
	Endpoint string

	// Store configures the credential and access store
	Store StoreConf

	// AllowRegistration controls whether new accounts may be created
	// during the handshake
	AllowRegistration bool

	// TimeoutSecond bounds the wait for the handshake reply
	TimeoutSecond int64

	// MaxClients is the maximum number of simultaneously connected
	// clients, MaxClientsUnlimited for no limit
	MaxClients int

	// MetricsEndpoint, when non empty, is the address a Prometheus text
	// endpoint is served on
	MetricsEndpoint string

	// LogLevel is the level at which logs are emitted (debug, info, warn, error)
	LogLevel string

	// Socket tuning
	Socket SocketConf
}

// Validate checks the configuration for usage faults that would otherwise
// surface late, during Serve.
func (c *ServerConfig) Validate() error {
	if c.ServerName == "" {
		return fmt.Errorf("server name must not be empty")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.TimeoutSecond <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSecond)
	}
	if c.MaxClients < MaxClientsUnlimited || c.MaxClients == 0 {
		return fmt.Errorf("max clients must be positive or %d for unlimited, got %d", MaxClientsUnlimited, c.MaxClients)
	}
	return nil
}

// String returns a formatted string representation of the configuration.
// The owner base password is not included.
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Name", c.ServerName)
	addField("Endpoint", c.Endpoint)
	addField("Registration", fmt.Sprintf("%t", c.AllowRegistration))
	addField("Handshake Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MaxClients == MaxClientsUnlimited {
		addField("Max Clients", "unlimited")
	} else {
		addField("Max Clients", strconv.Itoa(c.MaxClients))
	}

	addSection("Credential Store")
	addField("Path", c.Store.Path)
	var flags []string
	for flag, granted := range c.Store.BaseAccess {
		flags = append(flags, fmt.Sprintf("%s=%t", flag, granted))
	}
	addField("Base Access", strings.Join(flags, ", "))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if c.MetricsEndpoint != "" {
		addSection("Metrics")
		addField("Endpoint", c.MetricsEndpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters of a hub client.
type ClientConfig struct {
	// Endpoint is the server address to dial
	Endpoint string

	// Credentials used to answer the auth request
	Login    string
	Password string

	// Register requests account creation instead of a plain login
	Register bool

	// TimeoutSecond bounds the wait for the handshake exchange
	TimeoutSecond int64

	// DownloadDir is where received file transfers are written
	DownloadDir string

	// LogLevel is the level at which logs are emitted (debug, info, warn, error)
	LogLevel string

	// Socket tuning
	Socket SocketConf
}

// String returns a formatted string representation of the client
// configuration. The password is not included.
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client")
	addField("Endpoint", c.Endpoint)
	addField("Login", c.Login)
	addField("Register", fmt.Sprintf("%t", c.Register))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Download Dir", c.DownloadDir)

	return sb.String()
}
