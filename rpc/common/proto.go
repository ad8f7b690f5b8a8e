package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Response Code Definition
// --------------------------------------------------------------------------

// ResponseCode discriminates the kind of an Envelope. The integer values are
// the wire contract and must never be renumbered. Codes are grouped into four
// bands: authentication, network function requests, file transfer and logging.
type ResponseCode int

const (
	// CodeUnknown is the zero value and never valid on the wire
	CodeUnknown ResponseCode = 0

	// Authentication band

	AuthReq      ResponseCode = 10 // Server asks the peer for credentials
	AuthAnsLogin ResponseCode = 11 // Peer answers with existing credentials
	AuthAnsRegis ResponseCode = 12 // Peer answers with credentials for a new account
	AuthAnsServe ResponseCode = 19 // Server confirms the handshake, carries the server name

	// Network function band

	NetReq ResponseCode = 20 // Request to invoke a named network function

	// File transfer band

	FilReq ResponseCode = 30 // One chunk of a file transfer
	FilEnd ResponseCode = 31 // End of a file transfer

	// Log band

	LogDeb ResponseCode = 41 // Debug level log line for the peer
	LogInf ResponseCode = 42 // Info level log line for the peer
	LogWar ResponseCode = 43 // Warning level log line for the peer
	LogErr ResponseCode = 44 // Error level log line for the peer
)

// IsAuth reports whether the code belongs to the authentication band.
func (c ResponseCode) IsAuth() bool {
	switch c {
	case AuthReq, AuthAnsLogin, AuthAnsRegis, AuthAnsServe:
		return true
	}
	return false
}

// IsClientAuth reports whether the code is a valid peer reply during the
// authentication handshake (login or register answer).
func (c ResponseCode) IsClientAuth() bool {
	return c == AuthAnsLogin || c == AuthAnsRegis
}

// IsNet reports whether the code belongs to the network function band.
func (c ResponseCode) IsNet() bool {
	return c == NetReq
}

// IsFile reports whether the code belongs to the file transfer band.
func (c ResponseCode) IsFile() bool {
	return c == FilReq || c == FilEnd
}

// IsLog reports whether the code belongs to the log band.
func (c ResponseCode) IsLog() bool {
	return c >= LogDeb && c <= LogErr
}

// IsValid reports whether the code is part of the closed enumeration.
func (c ResponseCode) IsValid() bool {
	return c.IsAuth() || c.IsNet() || c.IsFile() || c.IsLog()
}

// String returns the string representation of a ResponseCode.
func (c ResponseCode) String() string {
	switch c {
	case AuthReq:
		return "auth_req"
	case AuthAnsLogin:
		return "auth_ans_login"
	case AuthAnsRegis:
		return "auth_ans_regis"
	case AuthAnsServe:
		return "auth_ans_serve"
	case NetReq:
		return "net_req"
	case FilReq:
		return "fil_req"
	case FilEnd:
		return "fil_end"
	case LogDeb:
		return "log_deb"
	case LogInf:
		return "log_inf"
	case LogWar:
		return "log_war"
	case LogErr:
		return "log_err"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Envelope Structure
// --------------------------------------------------------------------------

// Reserved wire field names. Everything else in an inbound mapping is treated
// as a band specific keyword argument and collected into Envelope.Args.
const (
	fieldCode        = "code"
	fieldNetFuncName = "net_func_name"
	fieldLogin       = "login"
	fieldPassword    = "password"
	fieldServerName  = "server_name"
	fieldMessage     = "message"
	fieldFileName    = "file_name"
	fieldChunk       = "chunk"
)

// Envelope is a single tagged message unit exchanged over a connection.
// On the wire it is a flat mapping: the well known fields below under their
// wire names plus any Args entries at the top level. Which fields are used
// depends on the band of the Code.
type Envelope struct {
	// Code discriminates the envelope kind, always present
	Code ResponseCode `json:"code"`

	// Network function band
	NetFuncName string `json:"net_func_name,omitempty"`

	// Authentication band
	Login      string `json:"login,omitempty"`
	Password   string `json:"password,omitempty"`
	ServerName string `json:"server_name,omitempty"`

	// Log band
	Message string `json:"message,omitempty"`

	// File transfer band
	FileName string `json:"file_name,omitempty"`
	Chunk    []byte `json:"chunk,omitempty"`

	// Args holds the remaining band specific keyword fields. They are
	// flattened onto the top level of the wire mapping.
	Args map[string]any `json:"-"`
}

// reservedField reports whether a wire key is one of the typed Envelope fields.
func reservedField(key string) bool {
	switch key {
	case fieldCode, fieldNetFuncName, fieldLogin, fieldPassword,
		fieldServerName, fieldMessage, fieldFileName, fieldChunk:
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler. It flattens the Args entries onto
// the top level of the mapping next to the typed fields. Args entries whose
// key collides with a reserved field name are skipped.
func (e Envelope) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(e.Args)+8)
	for k, v := range e.Args {
		if !reservedField(k) {
			fields[k] = v
		}
	}

	fields[fieldCode] = int(e.Code)
	if e.NetFuncName != "" {
		fields[fieldNetFuncName] = e.NetFuncName
	}
	if e.Login != "" {
		fields[fieldLogin] = e.Login
	}
	if e.Password != "" {
		fields[fieldPassword] = e.Password
	}
	if e.ServerName != "" {
		fields[fieldServerName] = e.ServerName
	}
	if e.Message != "" {
		fields[fieldMessage] = e.Message
	}
	if e.FileName != "" {
		fields[fieldFileName] = e.FileName
	}
	if len(e.Chunk) > 0 {
		fields[fieldChunk] = e.Chunk
	}

	return json.Marshal(fields)
}

// UnmarshalJSON implements json.Unmarshaler. The input must be a mapping.
// Well known keys are decoded into the typed fields, everything else is
// collected into Args. A missing "code" key leaves Code as CodeUnknown - the
// caller decides whether that is a protocol violation.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("envelope must be a mapping: %v", err)
	}

	*e = Envelope{}

	if raw, ok := fields[fieldCode]; ok {
		var code int
		if err := json.Unmarshal(raw, &code); err != nil {
			return fmt.Errorf("envelope field %q must be an integer: %v", fieldCode, err)
		}
		e.Code = ResponseCode(code)
	}

	stringFields := map[string]*string{
		fieldNetFuncName: &e.NetFuncName,
		fieldLogin:       &e.Login,
		fieldPassword:    &e.Password,
		fieldServerName:  &e.ServerName,
		fieldMessage:     &e.Message,
		fieldFileName:    &e.FileName,
	}
	for key, dst := range stringFields {
		if raw, ok := fields[key]; ok {
			if err := json.Unmarshal(raw, dst); err != nil {
				return fmt.Errorf("envelope field %q must be a string: %v", key, err)
			}
		}
	}

	if raw, ok := fields[fieldChunk]; ok {
		if err := json.Unmarshal(raw, &e.Chunk); err != nil {
			return fmt.Errorf("envelope field %q must be base64 data: %v", fieldChunk, err)
		}
	}

	for key, raw := range fields {
		if reservedField(key) {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("envelope field %q: %v", key, err)
		}
		if e.Args == nil {
			e.Args = make(map[string]any)
		}
		e.Args[key] = value
	}

	return nil
}

// --------------------------------------------------------------------------
// Envelope Factory Functions
// --------------------------------------------------------------------------

// NewAuthRequest creates the envelope the server sends to ask for credentials
func NewAuthRequest() *Envelope {
	return &Envelope{Code: AuthReq}
}

// NewLoginAnswer creates the peer reply for an existing account
func NewLoginAnswer(login, password string) *Envelope {
	return &Envelope{Code: AuthAnsLogin, Login: login, Password: password}
}

// NewRegisterAnswer creates the peer reply requesting a new account
func NewRegisterAnswer(login, password string) *Envelope {
	return &Envelope{Code: AuthAnsRegis, Login: login, Password: password}
}

// NewServeAnswer creates the envelope confirming a successful handshake
func NewServeAnswer(serverName string) *Envelope {
	return &Envelope{Code: AuthAnsServe, ServerName: serverName}
}

// NewNetRequest creates a network function invocation envelope
func NewNetRequest(funcName string, args map[string]any) *Envelope {
	return &Envelope{Code: NetReq, NetFuncName: funcName, Args: args}
}

// NewFileChunk creates one chunk of a file transfer
func NewFileChunk(name string, chunk []byte) *Envelope {
	return &Envelope{Code: FilReq, FileName: name, Chunk: chunk}
}

// NewFileEnd creates the envelope terminating a file transfer
func NewFileEnd(name string) *Envelope {
	return &Envelope{Code: FilEnd, FileName: name}
}

// NewLog creates a log band envelope. The code must be one of the log codes.
func NewLog(code ResponseCode, message string) *Envelope {
	return &Envelope{Code: code, Message: message}
}

// NewLogError creates an error level log envelope
func NewLogError(message string) *Envelope {
	return &Envelope{Code: LogErr, Message: message}
}
