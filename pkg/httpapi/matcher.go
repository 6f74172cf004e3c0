package httpapi

import (
	"net/http"
	"strings"
	"sync"
)

// RouteMatch is the result of a successful route lookup.
type RouteMatch struct {
	// Name is the frontend adapter name the route binds to.
	Name string

	// Params holds captured :param segment values, keyed by param name.
	Params map[string]string
}

// route is a compiled route pattern.
type route struct {
	method   string   // upper-cased
	raw      string   // path as passed to Add, before prefixing
	segments []string // compiled from prefix + raw
	wildcard bool     // trailing * matches zero or more remaining segments
	name     string
}

// RouteMatcher maps method+path pairs to frontend adapter names.
//
// Patterns support literal segments, :param captures, and a trailing *
// wildcard that matches the rest of the path. Paths are case-sensitive,
// methods are not. Routes match in registration order; the first hit
// wins.
type RouteMatcher struct {
	mu     sync.RWMutex
	prefix string
	routes []*route
}

// NewRouteMatcher creates an empty matcher.
func NewRouteMatcher() *RouteMatcher {
	return &RouteMatcher{}
}

// DefaultRoutes returns a matcher with the conventional chat bindings:
// POST /v1/chat/completions for OpenAI-shaped frontends and
// POST /v1/messages for Anthropic-shaped ones.
func DefaultRoutes() *RouteMatcher {
	m := NewRouteMatcher()
	m.Add(http.MethodPost, "/v1/chat/completions", "openai")
	m.Add(http.MethodPost, "/v1/messages", "anthropic")
	return m
}

// Add registers a route pattern bound to the named frontend. The path is
// normalized: a leading slash is ensured, a trailing slash is stripped
// except for the root, and empty segments collapse. Only a trailing bare
// "*" segment acts as a wildcard; anywhere else "*" is a literal.
func (m *RouteMatcher) Add(method, path, frontendName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt := &route{
		method: strings.ToUpper(method),
		raw:    path,
		name:   frontendName,
	}
	rt.compile(m.prefix)
	m.routes = append(m.routes, rt)
}

// WithPrefix prepends prefix to every registered path, current and
// future, and re-normalizes. Calling it again replaces the previous
// prefix rather than stacking. Returns the matcher for chaining.
func (m *RouteMatcher) WithPrefix(prefix string) *RouteMatcher {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prefix = normalizePath(prefix)
	if m.prefix == "/" {
		m.prefix = ""
	}
	for _, rt := range m.routes {
		rt.compile(m.prefix)
	}
	return m
}

// Match resolves a method and path to a route. The incoming path is
// normalized the same way registered ones are.
func (m *RouteMatcher) Match(method, path string) (*RouteMatch, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	method = strings.ToUpper(method)
	segs := splitPath(path)

	for _, rt := range m.routes {
		if rt.method != method {
			continue
		}
		if params, ok := rt.match(segs); ok {
			return &RouteMatch{Name: rt.name, Params: params}, true
		}
	}
	return nil, false
}

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Routes returns a snapshot of the registered routes with their
// normalized, prefixed paths, in registration order.
func (m *RouteMatcher) Routes() []RouteInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]RouteInfo, len(m.routes))
	for i, rt := range m.routes {
		path := "/" + strings.Join(rt.segments, "/")
		if len(rt.segments) == 0 {
			path = "/"
		}
		if rt.wildcard {
			if path == "/" {
				path = "/*"
			} else {
				path += "/*"
			}
		}
		infos[i] = RouteInfo{Method: rt.method, Path: path, Name: rt.name}
	}
	return infos
}

func (rt *route) compile(prefix string) {
	full := rt.raw
	if prefix != "" {
		full = prefix + "/" + full
	}
	segs := splitPath(full)
	rt.wildcard = false
	if n := len(segs); n > 0 && segs[n-1] == "*" {
		rt.wildcard = true
		segs = segs[:n-1]
	}
	rt.segments = segs
}

func (rt *route) match(segs []string) (map[string]string, bool) {
	if rt.wildcard {
		if len(segs) < len(rt.segments) {
			return nil, false
		}
	} else if len(segs) != len(rt.segments) {
		return nil, false
	}

	var params map[string]string
	for i, want := range rt.segments {
		got := segs[i]
		if strings.HasPrefix(want, ":") && len(want) > 1 {
			if params == nil {
				params = make(map[string]string)
			}
			params[want[1:]] = got
			continue
		}
		if want != got {
			return nil, false
		}
	}
	return params, true
}

// normalizePath ensures a leading slash, strips a trailing slash except
// at the root, and collapses empty segments.
func normalizePath(p string) string {
	segs := splitPath(p)
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
