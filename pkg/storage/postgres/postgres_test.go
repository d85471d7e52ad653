package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rhuss/sellside/pkg/storage"
)

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("sellside_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// uniq suffixes ids so tests sharing a container do not collide.
func uniq(s string) string {
	return fmt.Sprintf("%s-%d", s, time.Now().UnixNano())
}

func TestListMigrations_Ordered(t *testing.T) {
	migrations, err := listMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].version)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].version, migrations[i].version)
	}
}

func TestPostgres_TenantLookups(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	id := uniq("acme")
	require.NoError(t, store.PutTenant(ctx, storage.Tenant{
		ID:          id,
		Subdomain:   id,
		VirtualHost: id + ".publisher.test",
	}))

	got, err := store.TenantByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusActive, got.Status)

	got, err = store.TenantBySubdomain(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	got, err = store.TenantByVirtualHost(ctx, id+".publisher.test:443")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	_, err = store.TenantBySubdomain(ctx, uniq("missing"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgres_TenantWithoutOptionalKeys(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	id := uniq("bare")
	require.NoError(t, store.PutTenant(ctx, storage.Tenant{ID: id}))

	got, err := store.TenantByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.Subdomain)
	assert.Empty(t, got.VirtualHost)

	// Empty lookups never match tenants stored with NULL keys.
	_, err = store.TenantBySubdomain(ctx, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgres_SubdomainConflict(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	sub := uniq("shared")
	require.NoError(t, store.PutTenant(ctx, storage.Tenant{ID: uniq("t1"), Subdomain: sub}))
	err := store.PutTenant(ctx, storage.Tenant{ID: uniq("t2"), Subdomain: sub})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestPostgres_PrincipalLookups(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tenantA, tenantB := uniq("a"), uniq("b")
	require.NoError(t, store.PutTenant(ctx, storage.Tenant{ID: tenantA}))
	require.NoError(t, store.PutTenant(ctx, storage.Tenant{ID: tenantB}))

	token := uniq("tok")
	require.NoError(t, store.PutPrincipal(ctx, storage.Principal{ID: "p1", TenantID: tenantA, AccessToken: token}))

	p, err := store.PrincipalByToken(ctx, tenantA, token)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	_, err = store.PrincipalByToken(ctx, tenantB, token)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Same token within one tenant is rejected.
	err = store.PutPrincipal(ctx, storage.Principal{ID: "p2", TenantID: tenantA, AccessToken: token})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Same token across tenants is storable and visible to global lookups.
	require.NoError(t, store.PutPrincipal(ctx, storage.Principal{ID: "p3", TenantID: tenantB, AccessToken: token}))
	holders, err := store.PrincipalsByToken(ctx, token)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, tenantA, holders[0].TenantID)
	assert.Equal(t, tenantB, holders[1].TenantID)

	// Rotating p1's token retires the old one within tenant A.
	rotated := uniq("tok")
	require.NoError(t, store.PutPrincipal(ctx, storage.Principal{ID: "p1", TenantID: tenantA, AccessToken: rotated}))
	_, err = store.PrincipalByToken(ctx, tenantA, token)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	p, err = store.PrincipalByToken(ctx, tenantA, rotated)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}
