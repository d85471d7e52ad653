package buyer

import (
	"net/http"
)

// identityTransport is an http.RoundTripper that stamps the configured
// identity signals onto every request.
type identityTransport struct {
	base http.RoundTripper
	cfg  Config
}

func newIdentityTransport(cfg Config) *identityTransport {
	base := cfg.HTTPClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &identityTransport{base: base, cfg: cfg}
}

func (t *identityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.cfg.Host != "" {
		req.Host = t.cfg.Host
	}
	if t.cfg.Tenant != "" {
		req.Header.Set(t.cfg.TenantHeader, t.cfg.Tenant)
	}

	if t.cfg.Token != "" {
		switch t.cfg.Placement {
		case PlaceAltHeader:
			req.Header.Set("X-Adcp-Auth", t.cfg.Token)
		case PlaceQuery:
			q := req.URL.Query()
			q.Set("access_token", t.cfg.Token)
			req.URL.RawQuery = q.Encode()
		default:
			req.Header.Set("Authorization", "Bearer "+t.cfg.Token)
		}
	}
	return t.base.RoundTrip(req)
}

func (t *identityTransport) client() *http.Client {
	c := *t.cfg.HTTPClient
	c.Transport = t
	return &c
}
