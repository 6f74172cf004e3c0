// Package stream provides channel operators for working with chat response
// streams.
//
// A stream is a receive-only channel of chunks. Every operator takes a
// context and a source channel, returns a derived channel, and runs exactly
// one goroutine. Operators watch the context at every chunk boundary; when
// it ends they emit one terminal error chunk with code cancelled, drain the
// source so upstream producers are never stranded, and close. Non-content
// chunks pass through untouched unless an operator says otherwise.
//
// The Accumulator folds a stream back into a complete response, and the
// mode converters translate between delta streams, where each content chunk
// carries only its increment, and accumulated streams, where each chunk
// also carries the full text so far.
package stream
