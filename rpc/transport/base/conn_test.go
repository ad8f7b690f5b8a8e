package base

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/dmbotnet/dmbn/rpc/serializer"
	"github.com/dmbotnet/dmbn/rpc/transport"
)

// pipeConns creates a connected pair of framed envelope connections
func pipeConns(t *testing.T) (transport.IConn, transport.IConn) {
	t.Helper()
	a, b := net.Pipe()
	ser := serializer.NewJSONSerializer()
	ca := NewConn(a, ser, common.SocketConf{})
	cb := NewConn(b, ser, common.SocketConf{})
	t.Cleanup(func() {
		_ = ca.Disconnect()
		_ = cb.Disconnect()
	})
	return ca, cb
}

// TestConnRoundTrip tests that envelopes survive the framed transfer
func TestConnRoundTrip(t *testing.T) {
	sender, receiver := pipeConns(t)

	sent := common.NewNetRequest("move", map[string]any{"x": 4.0})

	errCh := make(chan error, 1)
	go func() {
		errCh <- sender.Send(sent)
	}()

	got, err := receiver.Receive()
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if got.Code != common.NetReq || got.NetFuncName != "move" || got.Args["x"] != 4.0 {
		t.Errorf("unexpected envelope after round trip: %+v", got)
	}
}

// TestConnReceiveTimeout tests that a silent peer trips the deadline
func TestConnReceiveTimeout(t *testing.T) {
	_, receiver := pipeConns(t)

	start := time.Now()
	_, err := receiver.ReceiveTimeout(50 * time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !transport.IsTimeout(err) {
		t.Errorf("expected a timeout-class error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

// TestConnMalformedPayload tests that an undecodable frame is reported as
// ErrMalformed while the connection stays usable
func TestConnMalformedPayload(t *testing.T) {
	a, b := net.Pipe()
	receiver := NewConn(b, serializer.NewJSONSerializer(), common.SocketConf{})
	t.Cleanup(func() {
		_ = a.Close()
		_ = receiver.Disconnect()
	})

	// One frame of garbage followed by a valid envelope
	go func() {
		_, _ = a.Write([]byte{0, 0, 0, 3, 'x', 'y', 'z'})
		_, _ = a.Write([]byte{0, 0, 0, 11})
		_, _ = a.Write([]byte(`{"code":10}`))
	}()

	_, err := receiver.Receive()
	if err == nil {
		t.Fatal("expected malformed envelope error")
	}
	if !errors.Is(err, transport.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	env, err := receiver.Receive()
	if err != nil {
		t.Fatalf("connection unusable after malformed frame: %v", err)
	}
	if env.Code != common.AuthReq {
		t.Errorf("expected auth request after recovery, got %s", env.Code)
	}
}

// TestConnDisconnectIdempotent tests that Disconnect can be called repeatedly
func TestConnDisconnectIdempotent(t *testing.T) {
	c, _ := pipeConns(t)

	if !c.Connected() {
		t.Fatal("fresh connection should be connected")
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("first disconnect failed: %v", err)
	}
	if c.Connected() {
		t.Error("connection should report disconnected")
	}
	if err := c.Disconnect(); err != nil {
		t.Errorf("second disconnect should be a no-op, got %v", err)
	}
}

// TestConnOversizedEnvelope tests the outbound size guard
func TestConnOversizedEnvelope(t *testing.T) {
	a, b := net.Pipe()
	sender := NewConn(a, serializer.NewJSONSerializer(), common.SocketConf{MaxEnvelopeSize: 64})
	t.Cleanup(func() {
		_ = sender.Disconnect()
		_ = b.Close()
	})

	env := common.NewFileChunk("big.dat", make([]byte, 1024))
	if err := sender.Send(env); err == nil {
		t.Error("expected error for oversized envelope")
	}
}
