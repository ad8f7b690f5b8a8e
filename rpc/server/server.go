package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dmbotnet/dmbn/lib/userstore"
	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/dmbotnet/dmbn/rpc/registry"
	"github.com/dmbotnet/dmbn/rpc/serializer"
	"github.com/dmbotnet/dmbn/rpc/transport"
	"github.com/dmbotnet/dmbn/rpc/transport/base"
)

var Logger = logger.GetLogger("server")

// Server accepts peer connections, authenticates them against the user
// store and runs one message loop per live connection. All lifecycle
// transitions (Setup, Serve, Stop) are expected to be driven by a single
// supervisor; the live connection set itself is fully concurrent.
type Server struct {
	config     common.ServerConfig
	connector  transport.IServerConnector
	serializer serializer.IEnvelopeSerializer
	store      userstore.IUserStore
	registry   *registry.Registry

	listener net.Listener
	clients  *xsync.MapOf[string, *ClUnit]
	online   atomic.Bool
	isSetup  bool
}

// NewServer creates a server from its collaborators. The server is not
// listening until Setup and not accepting until Serve.
func NewServer(
	config common.ServerConfig,
	connector transport.IServerConnector,
	ser serializer.IEnvelopeSerializer,
	store userstore.IUserStore,
	reg *registry.Registry,
) *Server {
	return &Server{
		config:     config,
		connector:  connector,
		serializer: ser,
		store:      store,
		registry:   reg,
		clients:    xsync.NewMapOf[string, *ClUnit](),
	}
}

// Registry returns the network function registry of the server
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Online reports whether the server is currently accepting connections
func (s *Server) Online() bool {
	return s.online.Load()
}

// Addr returns the bound listener address, nil before Setup
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ClientCount returns the number of authenticated live connections
func (s *Server) ClientCount() int {
	return s.clients.Size()
}

// HasClient reports whether a live connection is registered under login
func (s *Server) HasClient(login string) bool {
	_, ok := s.clients.Load(login)
	return ok
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Setup validates the configuration, configures the user store and binds
// the listener. It must be called exactly once before Serve.
func (s *Server) Setup() error {
	if s.isSetup {
		return fmt.Errorf("server is already set up")
	}

	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %v", err)
	}

	st := s.config.Store
	if err := s.store.Configure(st.Path, st.OwnerBasePassword, st.BaseAccess); err != nil {
		return fmt.Errorf("failed to configure user store: %v", err)
	}

	l, err := s.connector.Listen(s.config)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %v", s.config.Endpoint, err)
	}
	s.listener = l
	s.isSetup = true

	Logger.Infof("server %q set up on %s (%s)", s.config.ServerName, l.Addr(), s.connector.GetName())
	return nil
}

// Serve starts the user store and runs the accept loop until Stop is
// called. It blocks; run it in its own goroutine when the caller needs to
// keep going. Returns nil on a regular shutdown.
func (s *Server) Serve() error {
	if !s.isSetup {
		return fmt.Errorf("server is not set up")
	}
	if !s.online.CompareAndSwap(false, true) {
		return fmt.Errorf("server is already running")
	}

	if err := s.store.Start(); err != nil {
		s.online.Store(false)
		return fmt.Errorf("failed to start user store: %v", err)
	}

	// a fatal accept error must still tear the server down
	defer func() {
		if s.online.Load() {
			_ = s.Stop()
		}
	}()

	Logger.Infof("server %q is accepting connections", s.config.ServerName)

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if !s.online.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("accept failed: %v", err)
			continue
		}
		metricAccepted.Inc()
		go s.handleConnection(nc)
	}
}

// Stop takes the server offline: it disconnects all live connections,
// clears the live set, closes the listener and stops the user store.
// Fails if the server is not running.
func (s *Server) Stop() error {
	if !s.online.CompareAndSwap(true, false) {
		return fmt.Errorf("server is not running")
	}

	var wg sync.WaitGroup
	s.clients.Range(func(_ string, cl *ClUnit) bool {
		wg.Add(1)
		go func(cl *ClUnit) {
			defer wg.Done()
			_ = cl.Disconnect()
		}(cl)
		return true
	})
	wg.Wait()
	s.clients.Clear()

	if s.listener != nil {
		_ = s.listener.Close()
	}
	if err := s.store.Stop(); err != nil {
		Logger.Errorf("failed to stop user store: %v", err)
	}

	Logger.Infof("server %q stopped", s.config.ServerName)
	return nil
}

// --------------------------------------------------------------------------
// Connection Handling
// --------------------------------------------------------------------------

func (s *Server) handleConnection(nc net.Conn) {
	if err := s.connector.UpgradeConnection(nc, s.config); err != nil {
		Logger.Warningf("failed to tune connection from %s: %v", nc.RemoteAddr(), err)
	}

	cl := newClUnit(base.NewConn(nc, s.serializer, s.config.Socket))

	if err := s.authenticate(cl); err != nil {
		metricAuthFailed.Inc()
		Logger.Warningf("handshake with %s failed: %v", cl.RemoteAddr(), err)
		// best effort, the peer may already be gone
		_ = cl.SendLogError(err.Error())
		_ = cl.Disconnect()
		return
	}

	// a re-login under the same name replaces the previous unit, the
	// replaced loop cleans up after itself without touching the new entry
	if old, loaded := s.clients.LoadAndStore(cl.Login(), cl); loaded {
		Logger.Warningf("%s logged in again, dropping the previous connection", cl.Login())
		_ = old.Disconnect()
	}

	Logger.Infof("%s is connected from %s", cl.Login(), cl.RemoteAddr())
	s.messageLoop(cl)
}

// authenticate runs the handshake on a fresh connection: it sends the auth
// request, waits for the answer within the configured window and resolves
// it against the user store. On success the unit carries the authenticated
// identity and the peer has received the serve answer.
func (s *Server) authenticate(cl *ClUnit) error {
	if s.config.MaxClients != common.MaxClientsUnlimited && s.clients.Size() >= s.config.MaxClients {
		return fmt.Errorf("server is full")
	}

	if err := cl.SendEnvelope(common.NewAuthRequest()); err != nil {
		return fmt.Errorf("failed to send auth request: %v", err)
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second
	env, err := cl.conn.ReceiveTimeout(timeout)
	if err != nil {
		switch {
		case transport.IsTimeout(err):
			return fmt.Errorf("no auth answer within %s", timeout)
		case errors.Is(err, transport.ErrMalformed):
			return fmt.Errorf("auth answer is not a valid envelope")
		default:
			return fmt.Errorf("transport failed during auth: %v", err)
		}
	}

	if env.Code == common.CodeUnknown {
		return fmt.Errorf("auth answer has no 'code' field")
	}
	if !env.Code.IsClientAuth() {
		return fmt.Errorf("unexpected code %s in auth answer", env.Code)
	}
	if env.Login == "" || env.Password == "" {
		return fmt.Errorf("auth answer must carry 'login' and 'password'")
	}

	if env.Code == common.AuthAnsRegis {
		if !s.config.AllowRegistration {
			return fmt.Errorf("registration is disabled on this server")
		}
		if err := s.store.AddUser(env.Login, env.Password); err != nil {
			return fmt.Errorf("registration of %q failed: %v", env.Login, err)
		}
	} else {
		if err := s.store.LoginUser(env.Login, env.Password); err != nil {
			return fmt.Errorf("login of %q failed: %v", env.Login, err)
		}
	}

	cl.setLogin(env.Login)
	return cl.SendEnvelope(common.NewServeAnswer(s.config.ServerName))
}

// messageLoop consumes envelopes from an authenticated connection until the
// peer disconnects or the server goes offline. Malformed frames and
// protocol violations are reported to the peer and the loop keeps going;
// only transport failures end it.
func (s *Server) messageLoop(cl *ClUnit) {
	defer func() {
		// remove the unit from the live set, but only if the entry is
		// still ours (a re-login may have replaced it already)
		s.clients.Compute(cl.Login(), func(old *ClUnit, loaded bool) (*ClUnit, bool) {
			return old, !loaded || old == cl
		})
		_ = cl.Disconnect()
		Logger.Infof("%s is disconnected", cl.Login())
	}()

	for s.online.Load() {
		env, err := cl.conn.Receive()
		if err != nil {
			if errors.Is(err, transport.ErrMalformed) {
				_ = cl.SendLogError("received data is not a valid envelope")
				continue
			}
			if transport.IsDisconnect(err) {
				return
			}
			Logger.Errorf("receive from %s failed: %v", cl.Login(), err)
			_ = cl.SendLogError(fmt.Sprintf("an unexpected error occurred: %v", err))
			return
		}

		if env.Code == common.CodeUnknown {
			_ = cl.SendLogError("received data has no 'code' field")
			continue
		}
		if !env.Code.IsNet() {
			_ = cl.SendLogError(fmt.Sprintf("code %s is not accepted after auth", env.Code))
			continue
		}

		metricNetRequests.Inc()
		s.registry.Dispatch(cl, env.NetFuncName, env.Args)
	}
}

// --------------------------------------------------------------------------
// Broadcast
// --------------------------------------------------------------------------

// broadcastMethods maps a broadcastable method name to the ClUnit send it
// stands for. The envelope supplies the payload fields the method needs.
var broadcastMethods = map[string]func(cl *ClUnit, env *common.Envelope) error{
	"send_envelope": func(cl *ClUnit, env *common.Envelope) error {
		return cl.SendEnvelope(env)
	},
	"send_net": func(cl *ClUnit, env *common.Envelope) error {
		return cl.SendNet(env.NetFuncName, env.Args)
	},
	"send_log_debug": func(cl *ClUnit, env *common.Envelope) error {
		return cl.SendLogDebug(env.Message)
	},
	"send_log_info": func(cl *ClUnit, env *common.Envelope) error {
		return cl.SendLogInfo(env.Message)
	},
	"send_log_warning": func(cl *ClUnit, env *common.Envelope) error {
		return cl.SendLogWarning(env.Message)
	},
	"send_log_error": func(cl *ClUnit, env *common.Envelope) error {
		return cl.SendLogError(env.Message)
	},
}

// Broadcast applies the named send method with env to every live
// connection concurrently and waits until all sends finished. Per
// connection failures are logged and do not affect the other peers.
func (s *Server) Broadcast(method string, env *common.Envelope) {
	send, known := broadcastMethods[method]

	var wg sync.WaitGroup
	s.clients.Range(func(_ string, cl *ClUnit) bool {
		if !known {
			Logger.Errorf("%q is not a broadcastable method, skipping %s", method, cl.Login())
			return true
		}
		wg.Add(1)
		go func(cl *ClUnit) {
			defer wg.Done()
			if err := send(cl, env); err != nil {
				Logger.Errorf("broadcast %q to %s failed: %v", method, cl.Login(), err)
				return
			}
			metricBroadcasts.Inc()
		}(cl)
		return true
	})
	wg.Wait()
}
