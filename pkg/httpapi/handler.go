package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/bridge"
)

// MaxBodyBytes caps the request body size accepted by the handler.
const MaxBodyBytes = 10 * 1024 * 1024

// statusClientClosedRequest is the nginx convention for requests the
// client cancelled before a response was written.
const statusClientClosedRequest = 499

// Handler serves chat traffic over HTTP. A request is matched to a
// frontend name by the route table, authenticated, rate limited, decoded
// as JSON, and handed to the bridge mounted under that name. Responses
// stream as SSE when the payload asks for streaming, plain JSON
// otherwise.
type Handler struct {
	matcher *RouteMatcher
	limiter *RateLimiter
	auth    Validator
	logger  *slog.Logger

	mu      sync.RWMutex
	bridges map[string]*bridge.Bridge
}

// NewHandler creates a handler. The bridge, when non-nil, is mounted
// under its frontend's name; Mount adds more. A nil matcher gets
// DefaultRoutes, a nil limiter disables rate limiting, a nil auth
// disables authentication.
func NewHandler(b *bridge.Bridge, matcher *RouteMatcher, limiter *RateLimiter, auth Validator) *Handler {
	h := &Handler{
		matcher: matcher,
		limiter: limiter,
		auth:    auth,
		logger:  slog.Default().With("component", "httpapi"),
		bridges: make(map[string]*bridge.Bridge),
	}
	if h.matcher == nil {
		h.matcher = DefaultRoutes()
	}
	if b != nil {
		if fe := b.Frontend(); fe != nil {
			h.bridges[fe.Name()] = b
		}
	}
	return h
}

// Mount binds a bridge to a frontend name, replacing any previous
// binding for that name.
func (h *Handler) Mount(name string, b *bridge.Bridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridges[name] = b
}

func (h *Handler) bridge(name string) *bridge.Bridge {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bridges[name]
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	match, ok := h.matcher.Match(r.Method, r.URL.Path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found",
			fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path), false)
		return
	}

	if h.auth != nil && !h.auth(r) {
		h.logger.Warn("rejected request credentials",
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		writeJSONError(w, http.StatusUnauthorized, "unauthorized",
			"missing or invalid credentials", false)
		return
	}

	if h.limiter != nil && h.limiter.Check(w, r) {
		return
	}

	b := h.bridge(match.Name)
	if b == nil {
		writeJSONError(w, http.StatusNotImplemented, "unsupported",
			fmt.Sprintf("no frontend mounted for %q", match.Name), false)
		return
	}

	payload, err := decodeBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", err.Error(), false)
		return
	}

	if streaming, _ := payload["stream"].(bool); streaming {
		h.serveStream(w, r, match.Name, b, payload)
		return
	}
	h.serveChat(w, r, match.Name, b, payload)
}

// serveChat handles a unary chat request.
func (h *Handler) serveChat(w http.ResponseWriter, r *http.Request, name string, b *bridge.Bridge, payload map[string]any) {
	start := time.Now()

	result, err := b.Chat(r.Context(), payload)
	if err != nil {
		h.writeBridgeError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("failed to write response",
			"frontend", name,
			"error", err,
		)
		return
	}

	h.logger.Info("chat request served",
		"frontend", name,
		"path", r.URL.Path,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// serveStream handles a streaming chat request over SSE.
func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request, name string, b *bridge.Bridge, payload map[string]any) {
	start := time.Now()

	chunks, err := b.ChatStream(r.Context(), payload)
	if err != nil {
		// Stream never opened, so a plain JSON error still works.
		h.writeBridgeError(w, r, err)
		return
	}

	setSSEHeaders(w)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	sent := 0
	for item := range chunks {
		if err := writeSSE(w, item); err != nil {
			h.logger.Warn("client write failed during stream",
				"frontend", name,
				"chunks_sent", sent,
				"error", err,
			)
			return
		}
		sent++
	}

	if err := writeSSEDone(w); err != nil {
		h.logger.Warn("failed to write stream terminator", "error", err)
		return
	}

	h.logger.Info("streaming chat request served",
		"frontend", name,
		"path", r.URL.Path,
		"chunks_sent", sent,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// writeBridgeError maps a bridge failure onto an HTTP status and writes
// the error body.
func (h *Handler) writeBridgeError(w http.ResponseWriter, r *http.Request, err error) {
	aerr := adapter.Normalize(err)

	h.logger.Warn("chat request failed",
		"path", r.URL.Path,
		"code", string(aerr.Code),
		"backend", aerr.Backend,
		"error", aerr.Message,
	)

	if aerr.Code == adapter.ErrorCodeRateLimit && aerr.RetryAfter > 0 {
		secs := int(aerr.RetryAfter.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	writeJSONError(w, statusForCode(aerr.Code), string(aerr.Code), aerr.Message, aerr.Retryable)
}

// statusForCode maps the adapter error taxonomy onto HTTP statuses.
func statusForCode(code adapter.ErrorCode) int {
	switch code {
	case adapter.ErrorCodeValidation, adapter.ErrorCodeUnsupported:
		return http.StatusBadRequest
	case adapter.ErrorCodeRateLimit:
		return http.StatusTooManyRequests
	case adapter.ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	case adapter.ErrorCodeCancelled:
		return statusClientClosedRequest
	case adapter.ErrorCodeNoBackend, adapter.ErrorCodeCircuitOpen:
		return http.StatusServiceUnavailable
	case adapter.ErrorCodeNetwork, adapter.ErrorCodeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads and parses the JSON request body, enforcing
// MaxBodyBytes.
func decodeBody(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) >= MaxBodyBytes {
		return nil, fmt.Errorf("request body exceeds maximum size of %d bytes", MaxBodyBytes)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty request body")
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}
	return payload, nil
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// errorBody is the JSON error envelope shared by all failure paths.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeJSONError writes the error envelope, best effort.
func writeJSONError(w http.ResponseWriter, status int, code, message string, retryable bool) {
	body := errorBody{Error: errorDetail{Code: code, Message: message, Retryable: retryable}}
	if err := writeJSON(w, status, body); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

// setSSEHeaders sets the response headers for Server-Sent Events.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSE writes one item as an SSE data line and flushes.
func writeSSE(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal stream item: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write stream item: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// writeSSEDone writes the [DONE] marker that ends an SSE stream.
func writeSSEDone(w http.ResponseWriter) error {
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write done marker: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
