package tenant

import (
	"fmt"
	"net/http"
)

// Method records which signal identified the tenant of a request.
type Method string

const (
	MethodHostSubdomain  Method = "host_subdomain"
	MethodVirtualHost    Method = "virtual_host"
	MethodExplicitHeader Method = "explicit_header"
	MethodProxyHeader    Method = "proxy_header"
	// MethodGlobalFallback is set by the authenticator when the tenant came
	// from an unscoped token lookup rather than from the Locator.
	MethodGlobalFallback Method = "global_fallback"
)

// ConflictPolicy decides what happens when the Host-derived tenant and the
// explicit tenant header disagree.
type ConflictPolicy string

const (
	// PreferHost logs the disagreement and keeps the Host-derived tenant.
	PreferHost ConflictPolicy = "prefer_host"
	// RejectConflict fails the request with ErrConflictingSignals.
	RejectConflict ConflictPolicy = "reject"
)

// Default header names.
const (
	DefaultTenantHeader    = "X-Tenant"
	DefaultProxyHostHeader = "Apx-Incoming-Host"
)

// DefaultReservedLabels are first host labels that never name a tenant.
var DefaultReservedLabels = []string{"www", "admin", "localhost", "api"}

// Config holds Locator settings.
type Config struct {
	// ProductHosts are the bare hosts the product is served on
	// (e.g. "sales.example.com"). A request to one of them carries no
	// subdomain signal, and their first labels are reserved.
	ProductHosts []string

	// ReservedLabels replaces DefaultReservedLabels when non-nil.
	ReservedLabels []string

	// TenantHeader is the explicit tenant-hint header (default: X-Tenant).
	TenantHeader string

	// ProxyHostHeader is the host header injected by the ingress proxy
	// (default: Apx-Incoming-Host).
	ProxyHostHeader string

	// ConflictPolicy defaults to PreferHost.
	ConflictPolicy ConflictPolicy
}

func (c *Config) defaults() {
	if c.ReservedLabels == nil {
		c.ReservedLabels = DefaultReservedLabels
	}
	if c.TenantHeader == "" {
		c.TenantHeader = DefaultTenantHeader
	}
	if c.ProxyHostHeader == "" {
		c.ProxyHostHeader = DefaultProxyHostHeader
	}
	if c.ConflictPolicy == "" {
		c.ConflictPolicy = PreferHost
	}
	c.TenantHeader = http.CanonicalHeaderKey(c.TenantHeader)
	c.ProxyHostHeader = http.CanonicalHeaderKey(c.ProxyHostHeader)
}

// Validate checks that the policy is known.
func (c Config) Validate() error {
	switch c.ConflictPolicy {
	case "", PreferHost, RejectConflict:
		return nil
	default:
		return fmt.Errorf("unknown conflict policy %q (want %q or %q)", c.ConflictPolicy, PreferHost, RejectConflict)
	}
}
