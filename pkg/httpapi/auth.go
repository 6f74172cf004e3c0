package httpapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// Validator reports whether a request carries acceptable credentials. A
// nil Validator on the Handler means no authentication.
type Validator func(*http.Request) bool

// digest hashes a credential so comparisons run over fixed-length
// values. Comparing digests with subtle.ConstantTimeCompare leaks
// neither content nor length of the configured secrets.
func digest(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// NewBearerTokenValidator accepts requests whose Authorization header
// carries one of the given tokens as "Bearer <token>". The scheme is
// case-insensitive, the token is not. Every configured token is checked
// on every request so a miss costs the same as a hit.
func NewBearerTokenValidator(tokens ...string) Validator {
	digests := make([][]byte, len(tokens))
	for i, t := range tokens {
		digests[i] = digest(t)
	}

	return func(r *http.Request) bool {
		const scheme = "Bearer "
		raw := r.Header.Get("Authorization")
		if len(raw) <= len(scheme) || !strings.EqualFold(raw[:len(scheme)], scheme) {
			return false
		}
		got := digest(strings.TrimSpace(raw[len(scheme):]))

		matched := 0
		for _, want := range digests {
			matched |= subtle.ConstantTimeCompare(got, want)
		}
		return matched == 1
	}
}

// NewAPIKeyValidator accepts requests whose X-API-Key header matches one
// of the configured keys. The map key is a client label used only for
// debug logging on success; the map value is the secret.
func NewAPIKeyValidator(keys map[string]string) Validator {
	type entry struct {
		label string
		key   []byte
	}
	entries := make([]entry, 0, len(keys))
	for label, key := range keys {
		entries = append(entries, entry{label: label, key: digest(key)})
	}

	return func(r *http.Request) bool {
		got := digest(r.Header.Get("X-API-Key"))

		matched := ""
		for _, e := range entries {
			if subtle.ConstantTimeCompare(got, e.key) == 1 {
				matched = e.label
			}
		}
		if matched == "" {
			return false
		}
		slog.Debug("api key accepted", "client", matched, "path", r.URL.Path)
		return true
	}
}

// NewBasicAuthValidator accepts requests carrying HTTP basic auth
// matching one of the username/password pairs. Username and password
// must both match the same entry.
func NewBasicAuthValidator(users map[string]string) Validator {
	type cred struct {
		user []byte
		pass []byte
	}
	creds := make([]cred, 0, len(users))
	for u, p := range users {
		creds = append(creds, cred{user: digest(u), pass: digest(p)})
	}

	return func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		if !ok {
			return false
		}
		gu, gp := digest(user), digest(pass)

		matched := 0
		for _, c := range creds {
			matched |= subtle.ConstantTimeCompare(gu, c.user) &
				subtle.ConstantTimeCompare(gp, c.pass)
		}
		return matched == 1
	}
}
