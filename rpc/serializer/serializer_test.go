package serializer

import (
	"reflect"
	"testing"

	"github.com/dmbotnet/dmbn/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IEnvelopeSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testEnvelopes creates a set of test envelopes with different fields filled.
// Args values are limited to the types a json decode produces (string,
// float64, bool) so that every serializer round-trips them identically.
func testEnvelopes() []common.Envelope {
	return []common.Envelope{
		// Basic envelope with just a code
		{Code: common.AuthReq},

		// Login answer
		{
			Code:     common.AuthAnsLogin,
			Login:    "alice",
			Password: "secret",
		},

		// Serve answer
		{
			Code:       common.AuthAnsServe,
			ServerName: "Dev_Server",
		},

		// Network function request with kwargs
		{
			Code:        common.NetReq,
			NetFuncName: "move",
			Args:        map[string]any{"x": 4.0, "dir": "north", "fast": true},
		},

		// File chunk
		{
			Code:     common.FilReq,
			FileName: "map.dat",
			Chunk:    []byte{0x01, 0x02, 0x03, 0xff},
		},

		// Error log
		{
			Code:    common.LogErr,
			Message: "test error message",
		},
	}
}

// TestSerializerRoundTrip tests that envelopes can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	envelopes := testEnvelopes()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, env := range envelopes {
				// Serialize
				data, err := serializer.Serialize(env)
				if err != nil {
					t.Errorf("Failed to serialize envelope %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Envelope
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize envelope %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(env, result) {
					t.Errorf("Envelope %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, env, result)
				}
			}
		})
	}
}

// TestSerializerCodes tests each response code with each serializer
func TestSerializerCodes(t *testing.T) {
	codes := []common.ResponseCode{
		common.AuthReq, common.AuthAnsLogin, common.AuthAnsRegis, common.AuthAnsServe,
		common.NetReq, common.FilReq, common.FilEnd,
		common.LogDeb, common.LogInf, common.LogWar, common.LogErr,
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for _, code := range codes {
				env := common.Envelope{Code: code}

				data, err := serializer.Serialize(env)
				if err != nil {
					t.Errorf("Failed to serialize code %s: %v", code, err)
					continue
				}

				var result common.Envelope
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize code %s: %v", code, err)
					continue
				}

				if result.Code != code {
					t.Errorf("Code doesn't match after round trip: expected %s, got %s",
						code, result.Code)
				}
			}
		})
	}
}

// TestSerializerGarbageInput tests that deserializing garbage fails instead of panicking
func TestSerializerGarbageInput(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{0xff},
		[]byte("not an envelope"),
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			for i, input := range inputs {
				var env common.Envelope
				if err := serializer.Deserialize(input, &env); err == nil && len(input) < 2 {
					t.Errorf("input %d: expected error for truncated data", i)
				}
			}
		})
	}
}
