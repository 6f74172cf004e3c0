// Package normalize adapts request parameters and system messages to a
// backend's capabilities at the frontend to backend boundary.
//
// The parameter pipeline scales temperature between the canonical range and
// the backend's native range, clamps scalars into legal bounds, filters
// parameters the capability descriptor marks unsupported, truncates stop
// sequences, and finally applies configured defaults into fields the caller
// left unset. Every transformation is reported as a warning; the pipeline
// never mutates its input.
//
// System messages are projected per the backend's declared strategy: kept
// in the message list, collapsed, extracted into a side channel parameter,
// prepended to the first user message, or dropped.
package normalize
