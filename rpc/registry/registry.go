package registry

import (
	"encoding/json"
	"fmt"

	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("registry")

// --------------------------------------------------------------------------
// Caller Context
// --------------------------------------------------------------------------

// Caller is the connection context handed to every dispatched network
// function. On the server it is the connection unit of the requesting peer,
// on the client it is the client itself.
type Caller interface {
	// Login returns the authenticated identity of the peer
	Login() string
	// SendEnvelope sends an envelope back to the peer
	SendEnvelope(env *common.Envelope) error
}

// --------------------------------------------------------------------------
// Handler Types
// --------------------------------------------------------------------------

// HandlerFunc is the callable contract of a registered network function. The
// args mapping carries the band specific keyword fields of the request
// envelope. A returned error is logged by Dispatch and never propagates to
// the connection loop.
type HandlerFunc func(c Caller, args map[string]any) error

// Typed adapts a handler taking a typed request struct. The args mapping is
// decoded into T via json round trip: keys that match no field of T are
// silently dropped, a value of the wrong type aborts the call before the
// handler runs (the type-mismatch error path).
func Typed[T any](fn func(c Caller, req T) error) HandlerFunc {
	return func(c Caller, args map[string]any) error {
		blob, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("failed to encode arguments: %v", err)
		}

		var req T
		if err := json.Unmarshal(blob, &req); err != nil {
			return fmt.Errorf("argument type mismatch: %v", err)
		}

		return fn(c, req)
	}
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry is the process-wide mapping from network function name to handler.
// It is populated at setup time and read-only afterwards; Register rejects
// duplicate names so an accidental re-registration surfaces immediately
// instead of silently replacing a handler.
type Registry struct {
	funcs *xsync.MapOf[string, HandlerFunc]
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		funcs: xsync.NewMapOf[string, HandlerFunc](),
	}
}

// Register adds a network function under the given public name.
// Registering a name twice is rejected with an error.
func (r *Registry) Register(name string, h HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("network func name must not be empty")
	}
	if h == nil {
		return fmt.Errorf("network func %q must not be nil", name)
	}

	if _, loaded := r.funcs.LoadOrStore(name, h); loaded {
		return fmt.Errorf("network func %q is already registered", name)
	}

	Logger.Debugf("registered network func %q", name)
	return nil
}

// MustRegister is like Register but panics on error. Registration happens at
// setup time, a failure there is a programming fault.
func (r *Registry) MustRegister(name string, h HandlerFunc) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Len returns the number of registered network functions
func (r *Registry) Len() int {
	return r.funcs.Size()
}

// Dispatch invokes the named network function with the caller as context.
// Dispatch never fails towards the caller of Dispatch: an unknown name is a
// logged no-op (lenient dispatch - unknown or legacy requests are tolerated),
// handler errors are logged, and a panicking handler is contained.
func (r *Registry) Dispatch(c Caller, name string, args map[string]any) {
	if name == "" {
		Logger.Debugf("network request from %s without a function name", c.Login())
		return
	}

	h, ok := r.funcs.Load(name)
	if !ok {
		Logger.Debugf("network func %q not found", name)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			Logger.Errorf("network func %q panicked for %s: %v", name, c.Login(), rec)
		}
	}()

	if err := h(c, args); err != nil {
		Logger.Errorf("error calling network func %q for %s: %v", name, c.Login(), err)
	}
}
