// Package httpapi is the HTTP companion surface for the fabric: route
// matching, rate limiting, credential validation, and an http.Handler
// that serves bridges over JSON and SSE.
//
// The core never speaks a vendor wire protocol; httpapi only carries
// decoded JSON payloads between clients and whatever frontend adapter a
// route names. RouteMatcher binds method+path patterns (with :param
// captures and a trailing * wildcard) to frontend names, RateLimiter
// enforces a fixed window per client key, and the credential validators
// compare secrets in constant time.
package httpapi
