// Package memory provides an in-memory storage.Directory for tests and
// single-node deployments seeded from configuration. Records are lost when
// the process restarts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rhuss/sellside/pkg/storage"
)

// Store is an in-memory tenant and principal directory.
//
// Put methods exist for seeding and belong to the provisioning side; request
// processing only uses the storage.Directory methods.
type Store struct {
	mu          sync.RWMutex
	tenants     map[string]storage.Tenant
	bySubdomain map[string]string // subdomain -> tenant id
	byVHost     map[string]string // normalized host -> tenant id

	// token fingerprint -> tenant id -> principal
	tokens map[string]map[string]storage.Principal

	// principal key -> token fingerprint it currently holds
	byPrincipal map[principalKey]string
}

type principalKey struct{ tenantID, id string }

// Ensure Store implements storage.Directory and storage.Provisioner at compile time.
var (
	_ storage.Directory   = (*Store)(nil)
	_ storage.Provisioner = (*Store)(nil)
)

// New creates an empty directory.
func New() *Store {
	return &Store{
		tenants:     make(map[string]storage.Tenant),
		bySubdomain: make(map[string]string),
		byVHost:     make(map[string]string),
		tokens:      make(map[string]map[string]storage.Principal),
		byPrincipal: make(map[principalKey]string),
	}
}

// PutTenant adds or replaces a tenant. Returns storage.ErrConflict if the
// subdomain or virtual host is already owned by another tenant.
func (s *Store) PutTenant(_ context.Context, t storage.Tenant) error {
	if t.ID == "" {
		return fmt.Errorf("tenant id is required")
	}
	t.Subdomain = strings.ToLower(t.Subdomain)
	t.VirtualHost = storage.NormalizeHost(t.VirtualHost)

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Subdomain != "" {
		if owner, ok := s.bySubdomain[t.Subdomain]; ok && owner != t.ID {
			return fmt.Errorf("subdomain %q: %w", t.Subdomain, storage.ErrConflict)
		}
	}
	if t.VirtualHost != "" {
		if owner, ok := s.byVHost[t.VirtualHost]; ok && owner != t.ID {
			return fmt.Errorf("virtual host %q: %w", t.VirtualHost, storage.ErrConflict)
		}
	}

	// Drop stale index entries when a tenant is replaced.
	if old, ok := s.tenants[t.ID]; ok {
		delete(s.bySubdomain, old.Subdomain)
		delete(s.byVHost, old.VirtualHost)
	}

	s.tenants[t.ID] = t
	if t.Subdomain != "" {
		s.bySubdomain[t.Subdomain] = t.ID
	}
	if t.VirtualHost != "" {
		s.byVHost[t.VirtualHost] = t.ID
	}
	return nil
}

// PutPrincipal adds or updates a principal. Returns storage.ErrConflict if
// another principal of the same tenant already holds the token. When a
// principal's token changes, the previous token stops authenticating. The
// same token under a different tenant is accepted: that is the data-integrity
// defect the authenticator must detect, and tests need to be able to seed it.
func (s *Store) PutPrincipal(_ context.Context, p storage.Principal) error {
	if p.ID == "" || p.TenantID == "" {
		return fmt.Errorf("principal id and tenant id are required")
	}
	key := storage.TokenFingerprint(p.AccessToken)
	pk := principalKey{tenantID: p.TenantID, id: p.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tokens[key][p.TenantID]; ok && existing.ID != p.ID {
		return fmt.Errorf("token for tenant %q: %w", p.TenantID, storage.ErrConflict)
	}

	if old, ok := s.byPrincipal[pk]; ok && old != key {
		delete(s.tokens[old], p.TenantID)
		if len(s.tokens[old]) == 0 {
			delete(s.tokens, old)
		}
	}

	holders, ok := s.tokens[key]
	if !ok {
		holders = make(map[string]storage.Principal)
		s.tokens[key] = holders
	}
	holders[p.TenantID] = p
	s.byPrincipal[pk] = key
	return nil
}

// TenantByID looks up a tenant by its identifier.
func (s *Store) TenantByID(_ context.Context, id string) (*storage.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenant(id)
}

// TenantBySubdomain looks up a tenant by subdomain label.
func (s *Store) TenantBySubdomain(_ context.Context, subdomain string) (*storage.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySubdomain[strings.ToLower(subdomain)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.tenant(id)
}

// TenantByVirtualHost looks up a tenant by exact custom-domain match.
func (s *Store) TenantByVirtualHost(_ context.Context, host string) (*storage.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byVHost[storage.NormalizeHost(host)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.tenant(id)
}

// tenant returns a copy of the tenant. Caller must hold mu.
func (s *Store) tenant(id string) (*storage.Tenant, error) {
	t, ok := s.tenants[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

// PrincipalByToken looks up a principal by token within one tenant.
func (s *Store) PrincipalByToken(_ context.Context, tenantID, token string) (*storage.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.tokens[storage.TokenFingerprint(token)][tenantID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// PrincipalsByToken returns all principals holding the token, ordered by
// tenant id so results are deterministic.
func (s *Store) PrincipalsByToken(_ context.Context, token string) ([]storage.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holders := s.tokens[storage.TokenFingerprint(token)]
	out := make([]storage.Principal, 0, len(holders))
	for _, p := range holders {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
