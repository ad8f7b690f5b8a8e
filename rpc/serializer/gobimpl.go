package serializer

import (
	"bytes"
	"encoding/gob"

	"github.com/dmbotnet/dmbn/rpc/common"
)

func init() {
	// Concrete types that may travel inside the free-form Args mapping must
	// be registered with gob before they can be encoded as interface values.
	gob.Register("")
	gob.Register(0)
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(false)
	gob.Register([]byte(nil))
	gob.Register([]any(nil))
	gob.Register(map[string]any(nil))
}

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IEnvelopeSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IEnvelopeSerializer interface using gob encoding
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IEnvelopeSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, env *common.Envelope) error {
	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)
	return dec.Decode(env)
}
