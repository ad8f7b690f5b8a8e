package common

import (
	"encoding/json"
	"testing"
)

// TestResponseCodeBands tests that every code belongs to exactly one band
func TestResponseCodeBands(t *testing.T) {
	codes := []ResponseCode{
		AuthReq, AuthAnsLogin, AuthAnsRegis, AuthAnsServe,
		NetReq,
		FilReq, FilEnd,
		LogDeb, LogInf, LogWar, LogErr,
	}

	for _, code := range codes {
		bands := 0
		if code.IsAuth() {
			bands++
		}
		if code.IsNet() {
			bands++
		}
		if code.IsFile() {
			bands++
		}
		if code.IsLog() {
			bands++
		}
		if bands != 1 {
			t.Errorf("code %s (%d) belongs to %d bands, expected exactly 1", code, int(code), bands)
		}
		if !code.IsValid() {
			t.Errorf("code %s (%d) should be valid", code, int(code))
		}
	}

	if CodeUnknown.IsValid() {
		t.Error("CodeUnknown must not be valid")
	}
	if !AuthAnsLogin.IsClientAuth() || !AuthAnsRegis.IsClientAuth() {
		t.Error("login and register answers must be client auth codes")
	}
	if AuthReq.IsClientAuth() || AuthAnsServe.IsClientAuth() {
		t.Error("server side auth codes must not be client auth codes")
	}
}

// TestResponseCodeWireValues pins the stable integer values of the wire contract
func TestResponseCodeWireValues(t *testing.T) {
	expected := map[ResponseCode]int{
		AuthReq:      10,
		AuthAnsLogin: 11,
		AuthAnsRegis: 12,
		AuthAnsServe: 19,
		NetReq:       20,
		FilReq:       30,
		FilEnd:       31,
		LogDeb:       41,
		LogInf:       42,
		LogWar:       43,
		LogErr:       44,
	}
	for code, value := range expected {
		if int(code) != value {
			t.Errorf("code %s has value %d, wire contract says %d", code, int(code), value)
		}
	}
}

// TestEnvelopeMarshalFlattensArgs tests that Args entries appear at the top
// level of the wire mapping next to the typed fields
func TestEnvelopeMarshalFlattensArgs(t *testing.T) {
	env := NewNetRequest("move", map[string]any{"x": 4.0, "y": 2.0})

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("wire form is not a mapping: %v", err)
	}

	if wire["code"] != float64(NetReq) {
		t.Errorf("expected code %d, got %v", NetReq, wire["code"])
	}
	if wire["net_func_name"] != "move" {
		t.Errorf("expected net_func_name 'move', got %v", wire["net_func_name"])
	}
	if wire["x"] != 4.0 || wire["y"] != 2.0 {
		t.Errorf("args not flattened to top level: %v", wire)
	}
}

// TestEnvelopeUnmarshalCollectsArgs tests that unknown wire keys end up in Args
func TestEnvelopeUnmarshalCollectsArgs(t *testing.T) {
	data := []byte(`{"code": 20, "net_func_name": "move", "x": 4, "label": "up"}`)

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if env.Code != NetReq {
		t.Errorf("expected code %d, got %d", NetReq, env.Code)
	}
	if env.NetFuncName != "move" {
		t.Errorf("expected net_func_name 'move', got %q", env.NetFuncName)
	}
	if env.Args["x"] != float64(4) {
		t.Errorf("expected args x=4, got %v", env.Args["x"])
	}
	if env.Args["label"] != "up" {
		t.Errorf("expected args label='up', got %v", env.Args["label"])
	}
	if _, ok := env.Args["net_func_name"]; ok {
		t.Error("reserved field leaked into Args")
	}
}

// TestEnvelopeUnmarshalMissingCode tests that a mapping without a code decodes
// with CodeUnknown instead of failing - the caller decides how to handle it
func TestEnvelopeUnmarshalMissingCode(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"login": "bob"}`), &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if env.Code != CodeUnknown {
		t.Errorf("expected CodeUnknown, got %d", env.Code)
	}
	if env.Login != "bob" {
		t.Errorf("expected login 'bob', got %q", env.Login)
	}
}

// TestEnvelopeUnmarshalRejectsNonMapping tests the protocol-shape error path
func TestEnvelopeUnmarshalRejectsNonMapping(t *testing.T) {
	for _, data := range []string{`[1,2,3]`, `"hello"`, `42`} {
		var env Envelope
		if err := json.Unmarshal([]byte(data), &env); err == nil {
			t.Errorf("expected error for non-mapping input %s", data)
		}
	}
}

// TestEnvelopeUnmarshalRejectsBadCode tests that a non-integer code fails
func TestEnvelopeUnmarshalRejectsBadCode(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"code": "twenty"}`), &env); err == nil {
		t.Error("expected error for non-integer code")
	}
}

// TestEnvelopeRoundTrip tests field preservation through marshal and unmarshal
func TestEnvelopeRoundTrip(t *testing.T) {
	envelopes := []*Envelope{
		NewAuthRequest(),
		NewLoginAnswer("alice", "secret"),
		NewRegisterAnswer("bob", "hunter2"),
		NewServeAnswer("Dev_Server"),
		NewNetRequest("ping", nil),
		NewNetRequest("move", map[string]any{"x": 1.0, "dir": "north"}),
		NewFileChunk("map.dat", []byte{0xde, 0xad, 0xbe, 0xef}),
		NewFileEnd("map.dat"),
		NewLogError("something broke"),
		NewLog(LogInf, "hello"),
	}

	for i, env := range envelopes {
		data, err := json.Marshal(env)
		if err != nil {
			t.Errorf("envelope %d: marshal failed: %v", i, err)
			continue
		}

		var result Envelope
		if err := json.Unmarshal(data, &result); err != nil {
			t.Errorf("envelope %d: unmarshal failed: %v", i, err)
			continue
		}

		if result.Code != env.Code || result.Login != env.Login ||
			result.Password != env.Password || result.ServerName != env.ServerName ||
			result.NetFuncName != env.NetFuncName || result.Message != env.Message ||
			result.FileName != env.FileName {
			t.Errorf("envelope %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, env, result)
		}
		if string(result.Chunk) != string(env.Chunk) {
			t.Errorf("envelope %d: chunk mismatch", i)
		}
		for k, v := range env.Args {
			if result.Args[k] != v {
				t.Errorf("envelope %d: arg %q mismatch: %v != %v", i, k, result.Args[k], v)
			}
		}
	}
}
