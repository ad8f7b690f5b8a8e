package server

import (
	"net"
	"testing"
	"time"

	"github.com/dmbotnet/dmbn/lib/userstore"
	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/dmbotnet/dmbn/rpc/registry"
	"github.com/dmbotnet/dmbn/rpc/serializer"
	"github.com/dmbotnet/dmbn/rpc/transport"
	"github.com/dmbotnet/dmbn/rpc/transport/base"
	"github.com/dmbotnet/dmbn/rpc/transport/tcp"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

const testServerName = "Test_Hub"

func newTestServer(t *testing.T, mutate func(cfg *common.ServerConfig)) *Server {
	t.Helper()

	cfg := common.ServerConfig{
		ServerName:        testServerName,
		Endpoint:          "127.0.0.1:0",
		AllowRegistration: true,
		TimeoutSecond:     1,
		MaxClients:        common.MaxClientsUnlimited,
		LogLevel:          "warning",
		Store: common.StoreConf{
			Path:              ":memory:",
			OwnerBasePassword: "owner-secret",
			BaseAccess:        map[string]bool{"chat": true},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	s := NewServer(
		cfg,
		tcp.NewTCPServerConnector(),
		serializer.NewJSONSerializer(),
		userstore.NewSQLiteStore(),
		registry.New(),
	)
	if err := s.Setup(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	go func() { _ = s.Serve() }()
	t.Cleanup(func() {
		if s.Online() {
			_ = s.Stop()
		}
	})

	waitFor(t, s.Online)
	return s
}

func dialHub(t *testing.T, s *Server) transport.IConn {
	t.Helper()

	nc, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	conn := base.NewConn(nc, serializer.NewJSONSerializer(), common.SocketConf{})
	t.Cleanup(func() { _ = conn.Disconnect() })
	return conn
}

// registerPeer drives a full register handshake and returns the
// authenticated connection
func registerPeer(t *testing.T, s *Server, login, password string) transport.IConn {
	t.Helper()

	conn := dialHub(t, s)
	expectCode(t, conn, common.AuthReq)
	if err := conn.Send(common.NewRegisterAnswer(login, password)); err != nil {
		t.Fatalf("failed to send auth answer: %v", err)
	}
	env := expectCode(t, conn, common.AuthAnsServe)
	if env.ServerName != testServerName {
		t.Fatalf("serve answer names %q, want %q", env.ServerName, testServerName)
	}
	return conn
}

func expectCode(t *testing.T, conn transport.IConn, want common.ResponseCode) *common.Envelope {
	t.Helper()

	env, err := conn.ReceiveTimeout(3 * time.Second)
	if err != nil {
		t.Fatalf("receive failed while waiting for code %s: %v", want, err)
	}
	if env.Code != want {
		t.Fatalf("got code %s, want %s (message: %q)", env.Code, want, env.Message)
	}
	return env
}

func expectClosed(t *testing.T, conn transport.IConn) {
	t.Helper()

	_, err := conn.ReceiveTimeout(3 * time.Second)
	if err == nil {
		t.Fatalf("connection is still open, expected it to be closed")
	}
	if !transport.IsDisconnect(err) {
		t.Fatalf("expected a disconnect-class error, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

func TestHandshakeRegisterThenLogin(t *testing.T) {
	s := newTestServer(t, nil)

	conn := registerPeer(t, s, "alice", "secret")
	waitFor(t, func() bool { return s.HasClient("alice") })

	_ = conn.Disconnect()
	waitFor(t, func() bool { return s.ClientCount() == 0 })

	// the account persists, logging in again must succeed
	conn2 := dialHub(t, s)
	expectCode(t, conn2, common.AuthReq)
	if err := conn2.Send(common.NewLoginAnswer("alice", "secret")); err != nil {
		t.Fatalf("failed to send login answer: %v", err)
	}
	expectCode(t, conn2, common.AuthAnsServe)
	waitFor(t, func() bool { return s.HasClient("alice") })
}

func TestHandshakeWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)

	conn := registerPeer(t, s, "alice", "secret")
	_ = conn.Disconnect()
	waitFor(t, func() bool { return s.ClientCount() == 0 })

	conn2 := dialHub(t, s)
	expectCode(t, conn2, common.AuthReq)
	if err := conn2.Send(common.NewLoginAnswer("alice", "wrong")); err != nil {
		t.Fatalf("failed to send login answer: %v", err)
	}
	expectCode(t, conn2, common.LogErr)
	expectClosed(t, conn2)

	if s.ClientCount() != 0 {
		t.Fatalf("a failed login must not enter the live set")
	}
}

func TestHandshakeRejectsBadAnswers(t *testing.T) {
	tests := map[string]*common.Envelope{
		"missing password": {Code: common.AuthAnsLogin, Login: "bob"},
		"missing login":    {Code: common.AuthAnsLogin, Password: "secret"},
		"missing code":     {Login: "bob", Password: "secret"},
		"out of band code": common.NewNetRequest("ping", nil),
	}

	for name, answer := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, nil)

			conn := dialHub(t, s)
			expectCode(t, conn, common.AuthReq)
			if err := conn.Send(answer); err != nil {
				t.Fatalf("failed to send auth answer: %v", err)
			}
			expectCode(t, conn, common.LogErr)
			expectClosed(t, conn)

			if s.ClientCount() != 0 {
				t.Fatalf("a rejected handshake must not enter the live set")
			}
		})
	}
}

func TestHandshakeTimeout(t *testing.T) {
	s := newTestServer(t, nil)

	conn := dialHub(t, s)
	expectCode(t, conn, common.AuthReq)

	// never answer, the server has to give up on its own
	expectCode(t, conn, common.LogErr)
	expectClosed(t, conn)

	if s.ClientCount() != 0 {
		t.Fatalf("a timed out handshake must not enter the live set")
	}
}

func TestHandshakeRegistrationDisabled(t *testing.T) {
	s := newTestServer(t, func(cfg *common.ServerConfig) {
		cfg.AllowRegistration = false
	})

	conn := dialHub(t, s)
	expectCode(t, conn, common.AuthReq)
	if err := conn.Send(common.NewRegisterAnswer("alice", "secret")); err != nil {
		t.Fatalf("failed to send auth answer: %v", err)
	}
	expectCode(t, conn, common.LogErr)
	expectClosed(t, conn)
}

func TestHandshakeCapacityLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *common.ServerConfig) {
		cfg.MaxClients = 1
	})

	registerPeer(t, s, "alice", "secret")
	waitFor(t, func() bool { return s.ClientCount() == 1 })

	// the second connection is turned away before the auth request
	conn := dialHub(t, s)
	expectCode(t, conn, common.LogErr)
	expectClosed(t, conn)

	if s.ClientCount() != 1 {
		t.Fatalf("live set changed, want exactly the first peer")
	}
}

func TestHandshakeReloginReplacesConnection(t *testing.T) {
	s := newTestServer(t, nil)

	first := registerPeer(t, s, "alice", "secret")
	waitFor(t, func() bool { return s.HasClient("alice") })

	second := dialHub(t, s)
	expectCode(t, second, common.AuthReq)
	if err := second.Send(common.NewLoginAnswer("alice", "secret")); err != nil {
		t.Fatalf("failed to send login answer: %v", err)
	}
	expectCode(t, second, common.AuthAnsServe)

	// the first connection is dropped, the second one stays live
	expectClosed(t, first)
	waitFor(t, func() bool { return s.ClientCount() == 1 })
}

// --------------------------------------------------------------------------
// Message Loop
// --------------------------------------------------------------------------

func TestDispatchPingPong(t *testing.T) {
	s := newTestServer(t, nil)
	s.Registry().MustRegister("ping", func(c registry.Caller, args map[string]any) error {
		return c.SendEnvelope(common.NewNetRequest("pong", nil))
	})

	conn := registerPeer(t, s, "alice", "secret")
	if err := conn.Send(common.NewNetRequest("ping", nil)); err != nil {
		t.Fatalf("failed to send net request: %v", err)
	}

	env := expectCode(t, conn, common.NetReq)
	if env.NetFuncName != "pong" {
		t.Fatalf("got net func %q, want %q", env.NetFuncName, "pong")
	}
}

func TestDispatchTypedArgsOverWire(t *testing.T) {
	type echoReq struct {
		Text string `json:"text"`
	}

	s := newTestServer(t, nil)
	s.Registry().MustRegister("echo", registry.Typed(func(c registry.Caller, req echoReq) error {
		return c.SendEnvelope(common.NewNetRequest("echo_reply", map[string]any{"text": req.Text}))
	}))

	conn := registerPeer(t, s, "alice", "secret")
	args := map[string]any{"text": "hi", "undeclared": 42}
	if err := conn.Send(common.NewNetRequest("echo", args)); err != nil {
		t.Fatalf("failed to send net request: %v", err)
	}

	env := expectCode(t, conn, common.NetReq)
	if env.NetFuncName != "echo_reply" {
		t.Fatalf("got net func %q, want %q", env.NetFuncName, "echo_reply")
	}
	if got := env.Args["text"]; got != "hi" {
		t.Fatalf("got text %v, want %q", got, "hi")
	}
}

func TestLoopSurvivesProtocolViolations(t *testing.T) {
	s := newTestServer(t, nil)
	s.Registry().MustRegister("ping", func(c registry.Caller, args map[string]any) error {
		return c.SendEnvelope(common.NewNetRequest("pong", nil))
	})

	conn := registerPeer(t, s, "alice", "secret")

	// code outside the net band
	if err := conn.Send(common.NewAuthRequest()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	expectCode(t, conn, common.LogErr)

	// no code at all
	if err := conn.Send(&common.Envelope{Args: map[string]any{"foo": "bar"}}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	expectCode(t, conn, common.LogErr)

	// unknown net func is a silent no-op, the connection has to survive
	if err := conn.Send(common.NewNetRequest("no_such_func", nil)); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if err := conn.Send(common.NewNetRequest("ping", nil)); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	env := expectCode(t, conn, common.NetReq)
	if env.NetFuncName != "pong" {
		t.Fatalf("loop did not survive, got %q instead of pong", env.NetFuncName)
	}
}

// --------------------------------------------------------------------------
// Broadcast
// --------------------------------------------------------------------------

func TestBroadcastReachesAllPeers(t *testing.T) {
	s := newTestServer(t, nil)

	alice := registerPeer(t, s, "alice", "secret")
	bob := registerPeer(t, s, "bob", "secret")
	waitFor(t, func() bool { return s.ClientCount() == 2 })

	s.Broadcast("send_log_info", common.NewLog(common.LogInf, "hello everyone"))

	for name, conn := range map[string]transport.IConn{"alice": alice, "bob": bob} {
		env := expectCode(t, conn, common.LogInf)
		if env.Message != "hello everyone" {
			t.Fatalf("%s got message %q, want %q", name, env.Message, "hello everyone")
		}
	}
}

func TestBroadcastUnknownMethod(t *testing.T) {
	s := newTestServer(t, nil)
	registerPeer(t, s, "alice", "secret")
	waitFor(t, func() bool { return s.ClientCount() == 1 })

	// must not panic and must not send anything
	s.Broadcast("send_everything", common.NewLog(common.LogInf, "nope"))

	if s.ClientCount() != 1 {
		t.Fatalf("broadcast with unknown method changed the live set")
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestStopDisconnectsEveryone(t *testing.T) {
	s := newTestServer(t, nil)

	conns := []transport.IConn{
		registerPeer(t, s, "alice", "secret"),
		registerPeer(t, s, "bob", "secret"),
		registerPeer(t, s, "carol", "secret"),
	}
	waitFor(t, func() bool { return s.ClientCount() == 3 })

	if err := s.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	for _, conn := range conns {
		expectClosed(t, conn)
	}
	if s.ClientCount() != 0 {
		t.Fatalf("live set not cleared, %d connections left", s.ClientCount())
	}

	if err := s.Stop(); err == nil {
		t.Fatalf("second stop must fail")
	}
}

func TestLifecycleMisuse(t *testing.T) {
	cfg := common.ServerConfig{
		ServerName:        testServerName,
		Endpoint:          "127.0.0.1:0",
		AllowRegistration: true,
		TimeoutSecond:     1,
		MaxClients:        common.MaxClientsUnlimited,
		Store: common.StoreConf{
			Path:              ":memory:",
			OwnerBasePassword: "owner-secret",
			BaseAccess:        map[string]bool{"chat": true},
		},
	}
	s := NewServer(
		cfg,
		tcp.NewTCPServerConnector(),
		serializer.NewJSONSerializer(),
		userstore.NewSQLiteStore(),
		registry.New(),
	)

	if err := s.Serve(); err == nil {
		t.Fatalf("serve before setup must fail")
	}
	if err := s.Stop(); err == nil {
		t.Fatalf("stop before serve must fail")
	}

	if err := s.Setup(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := s.Setup(); err == nil {
		t.Fatalf("second setup must fail")
	}

	go func() { _ = s.Serve() }()
	waitFor(t, s.Online)
	if err := s.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
