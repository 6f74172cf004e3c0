package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authRequest(header, value string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	if header != "" {
		r.Header.Set(header, value)
	}
	return r
}

func TestBearerTokenValidator(t *testing.T) {
	v := NewBearerTokenValidator("tok-1", "tok-2")

	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"first token", "Bearer tok-1", true},
		{"second token", "Bearer tok-2", true},
		{"lowercase scheme", "bearer tok-1", true},
		{"wrong token", "Bearer tok-3", false},
		{"token prefix only", "Bearer tok-", false},
		{"token with extra", "Bearer tok-1x", false},
		{"no scheme", "tok-1", false},
		{"wrong scheme", "Basic tok-1", false},
		{"empty header", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := authRequest("Authorization", tt.value)
			if got := v(r); got != tt.want {
				t.Errorf("validate(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestBearerTokenValidatorNoTokens(t *testing.T) {
	v := NewBearerTokenValidator()
	if v(authRequest("Authorization", "Bearer anything")) {
		t.Error("validator with no tokens accepted a request")
	}
}

func TestAPIKeyValidator(t *testing.T) {
	v := NewAPIKeyValidator(map[string]string{
		"team-a": "key-aaaa",
		"team-b": "key-bb",
	})

	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"team a key", "key-aaaa", true},
		{"team b key", "key-bb", true},
		{"unknown key", "key-cccc", false},
		{"truncated key", "key-a", false},
		{"missing header", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := authRequest("X-API-Key", tt.value)
			if got := v(r); got != tt.want {
				t.Errorf("validate(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestBasicAuthValidator(t *testing.T) {
	v := NewBasicAuthValidator(map[string]string{
		"alice": "wonder",
		"bob":   "builder",
	})

	tests := []struct {
		name string
		user string
		pass string
		want bool
	}{
		{"alice", "alice", "wonder", true},
		{"bob", "bob", "builder", true},
		{"crossed pair", "alice", "builder", false},
		{"unknown user", "carol", "wonder", false},
		{"wrong password", "alice", "wander", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
			r.SetBasicAuth(tt.user, tt.pass)
			if got := v(r); got != tt.want {
				t.Errorf("validate(%s:%s) = %v, want %v", tt.user, tt.pass, got, tt.want)
			}
		})
	}
}

func TestBasicAuthValidatorNoHeader(t *testing.T) {
	v := NewBasicAuthValidator(map[string]string{"alice": "wonder"})
	if v(httptest.NewRequest(http.MethodPost, "/v1/messages", nil)) {
		t.Error("request without basic auth accepted")
	}
}
