package serializer

import (
	"encoding/json"

	"github.com/dmbotnet/dmbn/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding. This is the
// wire default: the envelope is encoded as the flat mapping described in the
// common package.
func NewJSONSerializer() IEnvelopeSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IEnvelopeSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IEnvelopeSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (j jsonSerializerImpl) Deserialize(b []byte, env *common.Envelope) error {
	return json.Unmarshal(b, env)
}
