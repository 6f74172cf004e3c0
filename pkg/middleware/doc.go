// Package middleware composes request processing layers around a chat
// call.
//
// A Stack holds two registries, unary and streaming, composed in onion
// order: the first layer added runs outermost. The stack is mutable until
// its first execution, then both registries lock together; mutating a
// locked stack panics, the same way registering a conflicting pattern on a
// served mux does. A layer may short-circuit by returning without calling
// next.
//
// The package ships three built-in layers: retry with exponential backoff,
// request/response transforms, and content validation with PII and prompt
// injection detection.
package middleware
