package serializer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dmbotnet/dmbn/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IEnvelopeSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IEnvelopeSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasNetFuncName byte = 1 << 0
	hasLogin       byte = 1 << 1
	hasPassword    byte = 1 << 2
	hasServerName  byte = 1 << 3
	hasMessage     byte = 1 << 4
	hasFileName    byte = 1 << 5
	hasChunk       byte = 1 << 6
	hasArgs        byte = 1 << 7
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IEnvelopeSerializer)
// --------------------------------------------------------------------------

func (s binarySerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	// The free-form Args mapping is carried as a nested json blob
	var argsBlob []byte
	if len(env.Args) > 0 {
		var err error
		argsBlob, err = json.Marshal(env.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode args: %v", err)
		}
	}

	// Calculate total size needed
	totalSize := s.sizeBytes(env, argsBlob)
	result := make([]byte, totalSize)

	// Write envelope code
	result[0] = byte(env.Code)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after code and flags

	writeString := func(value string, flag byte) {
		if value == "" {
			return
		}
		flags |= flag
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(value)))
		pos += 4
		copy(result[pos:pos+len(value)], value)
		pos += len(value)
	}

	writeBytes := func(value []byte, flag byte) {
		if len(value) == 0 {
			return
		}
		flags |= flag
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(value)))
		pos += 4
		copy(result[pos:pos+len(value)], value)
		pos += len(value)
	}

	writeString(env.NetFuncName, hasNetFuncName)
	writeString(env.Login, hasLogin)
	writeString(env.Password, hasPassword)
	writeString(env.ServerName, hasServerName)
	writeString(env.Message, hasMessage)
	writeString(env.FileName, hasFileName)
	writeBytes(env.Chunk, hasChunk)
	writeBytes(argsBlob, hasArgs)

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (s binarySerializerImpl) Deserialize(data []byte, env *common.Envelope) error {
	// Check minimum size (code + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for envelope header")
	}

	*env = common.Envelope{Code: common.ResponseCode(data[0])}

	flags := data[1]
	pos := 2

	readChunk := func(what string) ([]byte, error) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for %s length", what)
		}
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+length > len(data) {
			return nil, fmt.Errorf("data too short for %s data", what)
		}
		value := data[pos : pos+length]
		pos += length
		return value, nil
	}

	readString := func(dst *string, flag byte, what string) error {
		if flags&flag == 0 {
			return nil
		}
		value, err := readChunk(what)
		if err != nil {
			return err
		}
		*dst = string(value)
		return nil
	}

	if err := readString(&env.NetFuncName, hasNetFuncName, "net func name"); err != nil {
		return err
	}
	if err := readString(&env.Login, hasLogin, "login"); err != nil {
		return err
	}
	if err := readString(&env.Password, hasPassword, "password"); err != nil {
		return err
	}
	if err := readString(&env.ServerName, hasServerName, "server name"); err != nil {
		return err
	}
	if err := readString(&env.Message, hasMessage, "message"); err != nil {
		return err
	}
	if err := readString(&env.FileName, hasFileName, "file name"); err != nil {
		return err
	}

	if flags&hasChunk != 0 {
		value, err := readChunk("chunk")
		if err != nil {
			return err
		}
		env.Chunk = make([]byte, len(value))
		copy(env.Chunk, value)
	}

	if flags&hasArgs != 0 {
		blob, err := readChunk("args")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(blob, &env.Args); err != nil {
			return fmt.Errorf("failed to decode args: %v", err)
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (s binarySerializerImpl) sizeBytes(env common.Envelope, argsBlob []byte) int {
	// 1 byte for code + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	for _, str := range []string{
		env.NetFuncName, env.Login, env.Password,
		env.ServerName, env.Message, env.FileName,
	} {
		if str != "" {
			size += 4 + len(str)
		}
	}
	if len(env.Chunk) > 0 {
		size += 4 + len(env.Chunk)
	}
	if len(argsBlob) > 0 {
		size += 4 + len(argsBlob)
	}

	return size
}
