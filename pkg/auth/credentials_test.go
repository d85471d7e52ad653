package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer   abc  ", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Authorization", tt.value)
		}
		assert.Equal(t, tt.want, BearerToken(h, "Authorization"), "value %q", tt.value)
	}
}

func TestCredential_Priority(t *testing.T) {
	opts := CredentialOptions{AlternateHeader: "X-Adcp-Auth", QueryParam: DefaultQueryParam}
	query := url.Values{"access_token": {"from-query"}}

	h := hdr("Authorization", "Bearer from-header", "X-Adcp-Auth", "from-alt")
	token, src := Credential(h, query, opts)
	assert.Equal(t, "from-header", token)
	assert.Equal(t, SourceHeader, src)

	token, src = Credential(hdr("X-Adcp-Auth", "from-alt"), query, opts)
	assert.Equal(t, "from-alt", token)
	assert.Equal(t, SourceAlternateHeader, src)

	token, src = Credential(http.Header{}, query, opts)
	assert.Equal(t, "from-query", token)
	assert.Equal(t, SourceQuery, src)

	token, src = Credential(http.Header{}, nil, opts)
	assert.Empty(t, token)
	assert.Equal(t, SourceNone, src)
}

func TestCredential_DisabledFallbacks(t *testing.T) {
	token, _ := Credential(hdr("X-Adcp-Auth", "from-alt"), url.Values{"access_token": {"q"}}, CredentialOptions{})
	assert.Empty(t, token)
}

func TestRequestHeaders_IncludesHost(t *testing.T) {
	r := httptest.NewRequest("POST", "http://acme.example.com/a2a", nil)
	r.Header.Set("X-Tenant", "acme")

	h := RequestHeaders(r)
	assert.Equal(t, "acme.example.com", h.Get("Host"))
	assert.Equal(t, "acme", h.Get("X-Tenant"))
	assert.Empty(t, r.Header.Get("Host"), "request headers are not modified")
}

func TestPromoteQueryCredential(t *testing.T) {
	opts := CredentialOptions{QueryParam: DefaultQueryParam}

	r := httptest.NewRequest("POST", "/mcp?access_token=q-token", nil)
	PromoteQueryCredential(r, opts)
	assert.Equal(t, "Bearer q-token", r.Header.Get("Authorization"))

	// An existing header credential wins.
	r = httptest.NewRequest("POST", "/mcp?access_token=q-token", nil)
	r.Header.Set("Authorization", "Bearer h-token")
	PromoteQueryCredential(r, opts)
	assert.Equal(t, "Bearer h-token", r.Header.Get("Authorization"))

	// A header with another scheme is not replaced.
	r = httptest.NewRequest("POST", "/mcp?access_token=q-token", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	PromoteQueryCredential(r, opts)
	assert.Equal(t, "Basic dXNlcjpwYXNz", r.Header.Get("Authorization"))

	// Disabled.
	r = httptest.NewRequest("POST", "/mcp?access_token=q-token", nil)
	PromoteQueryCredential(r, CredentialOptions{})
	assert.Empty(t, r.Header.Get("Authorization"))
}
