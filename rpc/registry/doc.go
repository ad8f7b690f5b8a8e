// Package registry implements the network function registry: the mapping
// from public method name to callable handler consulted for every inbound
// network request.
//
// Functions are registered explicitly at setup time (Register/MustRegister);
// duplicate names are rejected so a clashing registration surfaces
// immediately. After setup the registry is effectively read-only and safe for
// concurrent dispatch from all connection loops.
//
// Dispatch follows a lenient policy: a request naming an unknown function is
// logged and dropped instead of failing the connection, surplus argument keys
// are silently discarded and an argument of the wrong type aborts the single
// call. No outcome of a dispatched function - error or panic - ever
// propagates into the connection loop.
//
// Handlers receive the requesting connection as a Caller and the request
// kwargs as a mapping. The Typed adapter decodes the mapping into a typed
// request struct:
//
//	reg.MustRegister("move", registry.Typed(func(c registry.Caller, req MoveReq) error {
//		...
//	}))
//
// WithAccess guards a handler with a persisted access flag from the user
// store.
package registry
