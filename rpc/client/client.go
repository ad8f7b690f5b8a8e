package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/dmbotnet/dmbn/rpc/registry"
	"github.com/dmbotnet/dmbn/rpc/serializer"
	"github.com/dmbotnet/dmbn/rpc/transport"
	"github.com/dmbotnet/dmbn/rpc/transport/base"
)

var Logger = logger.GetLogger("client")

// Client connects to a hub, answers its auth handshake and then consumes
// server envelopes in a background goroutine: log lines are forwarded to
// the local logger, file transfers are written to the download directory
// and network function invocations are dispatched into the client-side
// registry.
//
// Client implements registry.Caller, so client-side network functions get
// the client itself as their connection context.
type Client struct {
	config     common.ClientConfig
	connector  transport.IClientConnector
	serializer serializer.IEnvelopeSerializer
	registry   *registry.Registry

	mu         sync.Mutex
	conn       transport.IConn
	serverName string
	files      map[string]*os.File
	done       chan struct{}
}

// New creates a client. It is not connected until Connect.
func New(
	config common.ClientConfig,
	connector transport.IClientConnector,
	ser serializer.IEnvelopeSerializer,
	reg *registry.Registry,
) *Client {
	return &Client{
		config:     config,
		connector:  connector,
		serializer: ser,
		registry:   reg,
		files:      map[string]*os.File{},
	}
}

// Registry returns the client-side network function registry
func (c *Client) Registry() *registry.Registry {
	return c.registry
}

// Login returns the configured login of the client
func (c *Client) Login() string {
	return c.config.Login
}

// ServerName returns the name the server announced during the handshake,
// empty before Connect
func (c *Client) ServerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverName
}

// Connected reports whether the client currently holds a live connection
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.Connected()
}

// Done returns a channel that is closed when the listen loop of the
// current connection has ended. Nil before Connect.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Connect dials the configured endpoint, runs the auth handshake and
// starts the background listen loop. Registration instead of login is
// attempted when the config says so.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.Connected() {
		return fmt.Errorf("client is already connected")
	}
	if c.config.Login == "" || c.config.Password == "" {
		return fmt.Errorf("client config must carry login and password")
	}

	nc, err := c.connector.Connect(c.config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", c.config.Endpoint, err)
	}
	if err := c.connector.UpgradeConnection(nc, c.config); err != nil {
		Logger.Warningf("failed to tune connection to %s: %v", c.config.Endpoint, err)
	}

	conn := base.NewConn(nc, c.serializer, c.config.Socket)
	serverName, err := c.handshake(conn)
	if err != nil {
		_ = conn.Disconnect()
		return err
	}

	c.conn = conn
	c.serverName = serverName
	c.done = make(chan struct{})
	go c.listen(conn, c.done)

	Logger.Infof("connected to %q as %s", serverName, c.config.Login)
	return nil
}

// handshake answers the auth request of the server and waits for the
// serve answer, both within the configured timeout window
func (c *Client) handshake(conn transport.IConn) (string, error) {
	timeout := time.Duration(c.config.TimeoutSecond) * time.Second

	env, err := conn.ReceiveTimeout(timeout)
	if err != nil {
		return "", fmt.Errorf("no auth request from the server: %v", err)
	}
	if env.Code != common.AuthReq {
		return "", fmt.Errorf("expected an auth request, got code %s", env.Code)
	}

	answer := common.NewLoginAnswer(c.config.Login, c.config.Password)
	if c.config.Register {
		answer = common.NewRegisterAnswer(c.config.Login, c.config.Password)
	}
	if err := conn.Send(answer); err != nil {
		return "", fmt.Errorf("failed to send auth answer: %v", err)
	}

	reply, err := conn.ReceiveTimeout(timeout)
	if err != nil {
		return "", fmt.Errorf("no handshake verdict from the server: %v", err)
	}
	switch reply.Code {
	case common.AuthAnsServe:
		return reply.ServerName, nil
	case common.LogErr:
		return "", fmt.Errorf("server rejected the handshake: %s", reply.Message)
	default:
		return "", fmt.Errorf("unexpected handshake verdict, code %s", reply.Code)
	}
}

// Disconnect releases the connection. The listen loop ends on its own.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("client is not connected")
	}
	return c.conn.Disconnect()
}

// --------------------------------------------------------------------------
// Send Surface
// --------------------------------------------------------------------------

// SendEnvelope sends one envelope to the server
func (c *Client) SendEnvelope(env *common.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("client is not connected")
	}
	return conn.Send(env)
}

// SendNet invokes a network function on the server
func (c *Client) SendNet(name string, args map[string]any) error {
	return c.SendEnvelope(common.NewNetRequest(name, args))
}

// --------------------------------------------------------------------------
// Listen Loop
// --------------------------------------------------------------------------

// listen consumes server envelopes until the connection ends. Malformed
// payloads are logged and skipped.
func (c *Client) listen(conn transport.IConn, done chan struct{}) {
	defer func() {
		c.closeDownloads()
		_ = conn.Disconnect()
		close(done)
		Logger.Infof("disconnected from %q", c.ServerName())
	}()

	for {
		env, err := conn.Receive()
		if err != nil {
			if errors.Is(err, transport.ErrMalformed) {
				Logger.Warningf("dropping a malformed envelope from the server")
				continue
			}
			if !transport.IsDisconnect(err) {
				Logger.Errorf("receive failed: %v", err)
			}
			return
		}

		switch {
		case env.Code.IsLog():
			c.handleLog(env)
		case env.Code.IsFile():
			c.handleFile(env)
		case env.Code.IsNet():
			c.registry.Dispatch(c, env.NetFuncName, env.Args)
		default:
			Logger.Warningf("dropping an envelope with unexpected code %s", env.Code)
		}
	}
}

// handleLog forwards a server log line to the local logger
func (c *Client) handleLog(env *common.Envelope) {
	switch env.Code {
	case common.LogDeb:
		Logger.Debugf("server: %s", env.Message)
	case common.LogInf:
		Logger.Infof("server: %s", env.Message)
	case common.LogWar:
		Logger.Warningf("server: %s", env.Message)
	default:
		Logger.Errorf("server: %s", env.Message)
	}
}

// handleFile appends a chunk envelope to its download file, or closes the
// file on the end marker. Path traversal in the announced name is
// neutralized by keeping only the base name.
func (c *Client) handleFile(env *common.Envelope) {
	name := filepath.Base(env.FileName)
	if name == "." || name == string(filepath.Separator) {
		Logger.Warningf("dropping a file envelope with unusable name %q", env.FileName)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if env.Code == common.FilEnd {
		if f, ok := c.files[name]; ok {
			_ = f.Close()
			delete(c.files, name)
			Logger.Infof("download of %q finished", name)
		}
		return
	}

	f, ok := c.files[name]
	if !ok {
		if err := os.MkdirAll(c.config.DownloadDir, 0o755); err != nil {
			Logger.Errorf("failed to create download dir: %v", err)
			return
		}
		var err error
		f, err = os.OpenFile(filepath.Join(c.config.DownloadDir, name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			Logger.Errorf("failed to open download file %q: %v", name, err)
			return
		}
		c.files[name] = f
	}

	if _, err := f.Write(env.Chunk); err != nil {
		Logger.Errorf("failed to write download file %q: %v", name, err)
	}
}

// closeDownloads closes any half-received files
func (c *Client) closeDownloads() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, f := range c.files {
		_ = f.Close()
		delete(c.files, name)
		Logger.Warningf("download of %q was cut off", name)
	}
}
