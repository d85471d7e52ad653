// Package postgres provides a PostgreSQL implementation of storage.Directory.
// It uses pgx/v5 for connection pooling. Access tokens are stored and
// queried as SHA-256 digests; plaintext tokens never reach the database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/sellside/pkg/storage"
)

// Store is a PostgreSQL-backed Directory.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Directory and storage.Provisioner at compile time.
var (
	_ storage.Directory   = (*Store)(nil)
	_ storage.Provisioner = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const tenantColumns = `tenant_id, COALESCE(subdomain, ''), COALESCE(virtual_host, ''), status`

// TenantByID looks up a tenant by its identifier.
func (s *Store) TenantByID(ctx context.Context, id string) (*storage.Tenant, error) {
	return s.queryTenant(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE tenant_id = $1", id)
}

// TenantBySubdomain looks up a tenant by subdomain label.
func (s *Store) TenantBySubdomain(ctx context.Context, subdomain string) (*storage.Tenant, error) {
	return s.queryTenant(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE subdomain = $1", strings.ToLower(subdomain))
}

// TenantByVirtualHost looks up a tenant by exact custom-domain match.
func (s *Store) TenantByVirtualHost(ctx context.Context, host string) (*storage.Tenant, error) {
	return s.queryTenant(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE virtual_host = $1", storage.NormalizeHost(host))
}

func (s *Store) queryTenant(ctx context.Context, query string, arg string) (*storage.Tenant, error) {
	if arg == "" {
		return nil, storage.ErrNotFound
	}

	var t storage.Tenant
	var status string
	err := s.pool.QueryRow(ctx, query, arg).Scan(&t.ID, &t.Subdomain, &t.VirtualHost, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant: %w", err)
	}
	t.Status = storage.Status(status)
	return &t, nil
}

// PrincipalByToken looks up a principal by token within one tenant.
func (s *Store) PrincipalByToken(ctx context.Context, tenantID, token string) (*storage.Principal, error) {
	var p storage.Principal
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT principal_id, tenant_id, status
		FROM principals
		WHERE tenant_id = $1 AND access_token_sha256 = $2
	`, tenantID, storage.TokenFingerprint(token)).Scan(&p.ID, &p.TenantID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying principal: %w", err)
	}
	p.Status = storage.Status(status)
	return &p, nil
}

// PrincipalsByToken returns every principal holding the token, across tenants.
func (s *Store) PrincipalsByToken(ctx context.Context, token string) ([]storage.Principal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT principal_id, tenant_id, status
		FROM principals
		WHERE access_token_sha256 = $1
		ORDER BY tenant_id, principal_id
	`, storage.TokenFingerprint(token))
	if err != nil {
		return nil, fmt.Errorf("querying principals: %w", err)
	}
	defer rows.Close()

	var out []storage.Principal
	for rows.Next() {
		var p storage.Principal
		var status string
		if err := rows.Scan(&p.ID, &p.TenantID, &status); err != nil {
			return nil, fmt.Errorf("scanning principal: %w", err)
		}
		p.Status = storage.Status(status)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating principals: %w", err)
	}
	return out, nil
}

// PutTenant inserts or updates a tenant. It belongs to the provisioning side
// and is used by seeding tools and tests.
func (s *Store) PutTenant(ctx context.Context, t storage.Tenant) error {
	status := t.Status
	if status == "" {
		status = storage.StatusActive
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenants (tenant_id, subdomain, virtual_host, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id) DO UPDATE
		SET subdomain = EXCLUDED.subdomain,
		    virtual_host = EXCLUDED.virtual_host,
		    status = EXCLUDED.status
	`, t.ID, nullString(strings.ToLower(t.Subdomain)), nullString(storage.NormalizeHost(t.VirtualHost)), string(status))
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("upserting tenant: %w", err)
	}
	return nil
}

// PutPrincipal inserts or updates a principal. Returns storage.ErrConflict if
// another principal of the tenant already holds this token. Updating the
// token replaces the stored hash, so the previous token stops matching.
func (s *Store) PutPrincipal(ctx context.Context, p storage.Principal) error {
	status := p.Status
	if status == "" {
		status = storage.StatusActive
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO principals (principal_id, tenant_id, access_token_sha256, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, principal_id) DO UPDATE
		SET access_token_sha256 = EXCLUDED.access_token_sha256,
		    status = EXCLUDED.status
	`, p.ID, p.TenantID, storage.TokenFingerprint(p.AccessToken), string(status))
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("upserting principal: %w", err)
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
