// Package ir defines the intermediate representation at the heart of the
// Rosetta fabric.
//
// # Overview
//
// Chat providers expose conceptually similar APIs behind incompatible wire
// formats. The IR is the pivot that decouples them: frontend adapters
// translate caller-shaped requests into IR, backend adapters translate IR
// into provider wire formats, and everything between (normalization,
// middleware, routing, streaming operators) speaks only IR.
//
// # Types
//
// The request path is built from Message values carrying either plain text
// or a sequence of typed content blocks (text, image, tool_use,
// tool_result), optional Tool definitions described by a JSONSchema subset,
// and Parameters holding the canonical sampling controls. ChatRequest wraps
// them together with Metadata, whose RequestID is the correlation key for
// the whole request lifecycle, stable across retries and fallbacks.
//
// The response path produces ChatResponse for unary calls and a sequence of
// StreamChunk values for streaming calls. StreamChunk is a closed tagged
// union (start, content, tool_use, metadata, done, error); consumers switch
// on Type and must treat unknown tags as unsupported.
//
// # Immutability
//
// Messages, chunks, and IR values are value types from the caller's
// perspective. Code that needs to modify them derives a new value via the
// Clone helpers rather than mutating in place; this is what makes the
// middleware and streaming layers safe without locking.
package ir
