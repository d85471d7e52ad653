// Package redis provides a Redis-backed storage.Directory.
//
// The provisioning service writes tenant and principal records into Redis;
// request processing only reads them. Key layout, relative to KeyPrefix:
//
//	tenant:{id}              HASH  subdomain, virtual_host, status
//	tenant:subdomain:{label} STRING tenant id
//	tenant:vhost:{host}      STRING tenant id
//	token:{sha256(token)}    HASH  tenant id -> JSON {principal_id, status}
//	principal:{tenant}:{id}  STRING token key the principal currently holds
//
// Tokens are only ever stored as SHA-256 digests.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rhuss/sellside/pkg/storage"
)

// DefaultKeyPrefix namespaces all directory keys.
const DefaultKeyPrefix = "sellside:"

// Config holds Redis connection settings.
type Config struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string

	// KeyPrefix namespaces keys (default: "sellside:").
	KeyPrefix string
}

// Store is a Redis-backed Directory.
type Store struct {
	client redis.UniversalClient
	prefix string
	owned  bool // close the client on Close
}

// Ensure Store implements storage.Directory and storage.Provisioner at compile time.
var (
	_ storage.Directory   = (*Store)(nil)
	_ storage.Provisioner = (*Store)(nil)
)

// principalRecord is the JSON value stored per tenant under a token hash.
type principalRecord struct {
	PrincipalID string `json:"principal_id"`
	Status      string `json:"status"`
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	s := NewWithClient(client, cfg.KeyPrefix)
	s.owned = true
	return s, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of it.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) tenantKey(id string) string { return s.prefix + "tenant:" + id }

func (s *Store) subdomainKey(label string) string { return s.prefix + "tenant:subdomain:" + label }

func (s *Store) vhostKey(host string) string { return s.prefix + "tenant:vhost:" + host }

func (s *Store) principalKey(tenantID, id string) string {
	return s.prefix + "principal:" + tenantID + ":" + id
}

func (s *Store) tokenKey(token string) string {
	return s.prefix + "token:" + storage.TokenFingerprint(token)
}

// TenantByID looks up a tenant by its identifier.
func (s *Store) TenantByID(ctx context.Context, id string) (*storage.Tenant, error) {
	if id == "" {
		return nil, storage.ErrNotFound
	}
	fields, err := s.client.HGetAll(ctx, s.tenantKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading tenant: %w", err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}
	return &storage.Tenant{
		ID:          id,
		Subdomain:   fields["subdomain"],
		VirtualHost: fields["virtual_host"],
		Status:      storage.Status(fields["status"]),
	}, nil
}

// TenantBySubdomain looks up a tenant by subdomain label.
func (s *Store) TenantBySubdomain(ctx context.Context, subdomain string) (*storage.Tenant, error) {
	return s.tenantByIndex(ctx, s.subdomainKey(strings.ToLower(subdomain)), subdomain)
}

// TenantByVirtualHost looks up a tenant by exact custom-domain match.
func (s *Store) TenantByVirtualHost(ctx context.Context, host string) (*storage.Tenant, error) {
	host = storage.NormalizeHost(host)
	return s.tenantByIndex(ctx, s.vhostKey(host), host)
}

func (s *Store) tenantByIndex(ctx context.Context, key, value string) (*storage.Tenant, error) {
	if value == "" {
		return nil, storage.ErrNotFound
	}
	id, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading tenant index: %w", err)
	}
	return s.TenantByID(ctx, id)
}

// PrincipalByToken looks up a principal by token within one tenant.
func (s *Store) PrincipalByToken(ctx context.Context, tenantID, token string) (*storage.Principal, error) {
	raw, err := s.client.HGet(ctx, s.tokenKey(token), tenantID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading principal: %w", err)
	}
	p, err := decodePrincipal(tenantID, raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PrincipalsByToken returns every principal holding the token, across tenants.
func (s *Store) PrincipalsByToken(ctx context.Context, token string) ([]storage.Principal, error) {
	holders, err := s.client.HGetAll(ctx, s.tokenKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading principals: %w", err)
	}

	out := make([]storage.Principal, 0, len(holders))
	for tenantID, raw := range holders {
		p, err := decodePrincipal(tenantID, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func decodePrincipal(tenantID, raw string) (storage.Principal, error) {
	var rec principalRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return storage.Principal{}, fmt.Errorf("decoding principal for tenant %q: %w", tenantID, err)
	}
	return storage.Principal{
		ID:       rec.PrincipalID,
		TenantID: tenantID,
		Status:   storage.Status(rec.Status),
	}, nil
}

// HealthCheck verifies the Redis connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client if the store created it.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
