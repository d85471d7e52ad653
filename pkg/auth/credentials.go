package auth

import (
	"net/http"
	"net/url"
	"strings"
)

// Default credential locations.
const (
	DefaultCredentialHeader = "Authorization"
	DefaultQueryParam       = "access_token"
)

// CredentialSource records where a credential was found.
type CredentialSource string

const (
	SourceNone            CredentialSource = ""
	SourceHeader          CredentialSource = "header"
	SourceAlternateHeader CredentialSource = "alternate_header"
	SourceQuery           CredentialSource = "query"
)

// CredentialOptions names where a protocol carries its credential.
type CredentialOptions struct {
	// Header is the canonical credential header (default: Authorization).
	// Its value must use the Bearer scheme.
	Header string

	// AlternateHeader is a protocol-specific header carrying the raw token
	// (e.g. X-Adcp-Auth). Empty disables it.
	AlternateHeader string

	// QueryParam is the lowest-priority query parameter fallback.
	// Empty disables it.
	QueryParam string
}

func (o CredentialOptions) header() string {
	if o.Header == "" {
		return DefaultCredentialHeader
	}
	return o.Header
}

// BearerToken returns the token from an "Authorization: Bearer <token>" style
// header, or "" if the header is absent or uses another scheme.
func BearerToken(h http.Header, name string) string {
	v := strings.TrimSpace(h.Get(name))
	scheme, token, ok := strings.Cut(v, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Credential extracts the credential by priority: canonical header, alternate
// header, query parameter. query may be nil.
func Credential(h http.Header, query url.Values, opts CredentialOptions) (string, CredentialSource) {
	if token := BearerToken(h, opts.header()); token != "" {
		return token, SourceHeader
	}
	if opts.AlternateHeader != "" {
		if token := strings.TrimSpace(h.Get(opts.AlternateHeader)); token != "" {
			return token, SourceAlternateHeader
		}
	}
	if opts.QueryParam != "" && query != nil {
		if token := strings.TrimSpace(query.Get(opts.QueryParam)); token != "" {
			return token, SourceQuery
		}
	}
	return "", SourceNone
}

// RequestHeaders returns a copy of the request headers with the Host header
// filled in. Go moves Host out of r.Header, but tenant resolution reads it
// from the same header bag as every other signal.
func RequestHeaders(r *http.Request) http.Header {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if r.Host != "" {
		h.Set("Host", r.Host)
	}
	return h
}

// PromoteQueryCredential copies the query-parameter credential into the
// canonical header when that header is absent. Protocols whose handlers only
// see headers use it before dispatch. A header with another scheme is left
// untouched.
func PromoteQueryCredential(r *http.Request, opts CredentialOptions) {
	if opts.QueryParam == "" || r.Header.Get(opts.header()) != "" {
		return
	}
	token, source := Credential(r.Header, r.URL.Query(), opts)
	if source != SourceQuery {
		return
	}
	r.Header.Set(opts.header(), "Bearer "+token)
}
