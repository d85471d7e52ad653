package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Status is the lifecycle state of a tenant or principal.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDisabled  Status = "disabled"
)

// Active reports whether the record may be used to serve requests.
// An empty status is treated as active so that minimal seed data works.
func (s Status) Active() bool {
	return s == "" || s == StatusActive
}

// Tenant is a publisher-level isolation boundary.
type Tenant struct {
	ID          string `json:"tenant_id" yaml:"tenant_id"`
	Subdomain   string `json:"subdomain,omitempty" yaml:"subdomain"`
	VirtualHost string `json:"virtual_host,omitempty" yaml:"virtual_host"`
	Status      Status `json:"status" yaml:"status"`
}

// Principal is an advertiser identity owned by exactly one tenant.
// AccessToken is unique within TenantID; global uniqueness is expected
// but not guaranteed, and a violation is a provisioning defect.
type Principal struct {
	ID          string `json:"principal_id"`
	TenantID    string `json:"tenant_id"`
	AccessToken string `json:"-"`
	Status      Status `json:"status"`
}

// TenantStore answers point reads against the tenant table.
// Every method returns ErrNotFound when nothing matches.
type TenantStore interface {
	TenantByID(ctx context.Context, id string) (*Tenant, error)
	TenantBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	TenantByVirtualHost(ctx context.Context, host string) (*Tenant, error)
}

// PrincipalStore answers token lookups against the principal table.
type PrincipalStore interface {
	// PrincipalByToken looks up a principal by token within one tenant.
	// Returns ErrNotFound if the tenant has no such token.
	PrincipalByToken(ctx context.Context, tenantID, token string) (*Principal, error)

	// PrincipalsByToken returns every principal, across all tenants, holding
	// the token. An empty result is not an error.
	PrincipalsByToken(ctx context.Context, token string) ([]Principal, error)
}

// Directory is the full read interface consumed by tenant resolution and
// token authentication.
type Directory interface {
	TenantStore
	PrincipalStore

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}

// Provisioner writes directory records. It is used by the provisioning
// collaborator and by tests; request processing never writes.
type Provisioner interface {
	// PutTenant adds or replaces a tenant. Returns ErrConflict if the
	// subdomain or virtual host belongs to another tenant.
	PutTenant(ctx context.Context, t Tenant) error

	// PutPrincipal adds or updates a principal. Returns ErrConflict if a
	// different principal of the same tenant holds the token.
	PutPrincipal(ctx context.Context, p Principal) error
}

// NormalizeHost lowercases a host and strips any port and trailing dot,
// producing the form used for subdomain and virtual-host keys.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if strings.HasPrefix(host, "[") {
		// IPv6 literal: "[::1]:8080" -> "::1"
		if end := strings.Index(host, "]"); end > 0 {
			return host[1:end]
		}
		return host
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimSuffix(host, ".")
}

// TokenFingerprint returns a short, non-reversible identifier for a token,
// suitable for logs, alerts, and backend index keys.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
