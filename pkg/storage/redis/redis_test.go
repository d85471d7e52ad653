package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/sellside/pkg/storage"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, "test:"), mr
}

func TestNew_ConnectsAndOwnsClient(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := New(context.Background(), Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyPrefix, s.prefix)
	assert.NoError(t, s.HealthCheck(context.Background()))
	assert.NoError(t, s.Close())
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), Config{URL: "not a url"})
	assert.Error(t, err)
}

func TestTenantLookups(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTenant(ctx, storage.Tenant{ID: "acme", Subdomain: "Acme", VirtualHost: "ads.acme.com"}))

	// Keys follow the documented layout.
	assert.True(t, mr.Exists("test:tenant:acme"))
	got, err := mr.Get("test:tenant:subdomain:acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got)

	tenant, err := s.TenantBySubdomain(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.ID)
	assert.Equal(t, storage.StatusActive, tenant.Status)

	tenant, err = s.TenantByVirtualHost(ctx, "ads.acme.com:443")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.ID)

	_, err = s.TenantBySubdomain(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.TenantByID(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.TenantByVirtualHost(ctx, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPutTenant_IndexConflict(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTenant(ctx, storage.Tenant{ID: "acme", Subdomain: "acme"}))
	assert.ErrorIs(t, s.PutTenant(ctx, storage.Tenant{ID: "other", Subdomain: "acme"}), storage.ErrConflict)

	// Re-provisioning the same tenant is idempotent.
	assert.NoError(t, s.PutTenant(ctx, storage.Tenant{ID: "acme", Subdomain: "acme", Status: storage.StatusSuspended}))
	tenant, err := s.TenantByID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusSuspended, tenant.Status)
}

func TestPutTenant_RenameReleasesOldIndexes(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTenant(ctx, storage.Tenant{ID: "acme", Subdomain: "acme", VirtualHost: "ads.acme.com"}))
	require.NoError(t, s.PutTenant(ctx, storage.Tenant{ID: "acme", Subdomain: "acme-media", VirtualHost: "ads.acme-media.com"}))

	assert.False(t, mr.Exists("test:tenant:subdomain:acme"))
	assert.False(t, mr.Exists("test:tenant:vhost:ads.acme.com"))

	_, err := s.TenantBySubdomain(ctx, "acme")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.TenantByVirtualHost(ctx, "ads.acme.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	tenant, err := s.TenantBySubdomain(ctx, "acme-media")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.ID)

	// The released names can be claimed by another tenant.
	require.NoError(t, s.PutTenant(ctx, storage.Tenant{ID: "other", Subdomain: "acme", VirtualHost: "ads.acme.com"}))
	tenant, err = s.TenantByVirtualHost(ctx, "ads.acme.com")
	require.NoError(t, err)
	assert.Equal(t, "other", tenant.ID)
}

func TestPutTenant_FailedClaimKeepsPreviousIndexes(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTenant(ctx, storage.Tenant{ID: "acme", Subdomain: "acme"}))
	require.NoError(t, s.PutTenant(ctx, storage.Tenant{ID: "other", Subdomain: "other", VirtualHost: "ads.other.com"}))

	err := s.PutTenant(ctx, storage.Tenant{ID: "acme", Subdomain: "acme-media", VirtualHost: "ads.other.com"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	assert.False(t, mr.Exists("test:tenant:subdomain:acme-media"))
	tenant, err := s.TenantBySubdomain(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.ID)
}

func TestPrincipalLookups(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p-a", TenantID: "a", AccessToken: "shared"}))
	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p-b", TenantID: "b", AccessToken: "shared"}))
	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p-c", TenantID: "c", AccessToken: "unique"}))

	// Plaintext tokens never appear in keys.
	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "shared")
	}

	p, err := s.PrincipalByToken(ctx, "c", "unique")
	require.NoError(t, err)
	assert.Equal(t, "p-c", p.ID)
	assert.Equal(t, storage.StatusActive, p.Status)

	_, err = s.PrincipalByToken(ctx, "a", "unique")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	holders, err := s.PrincipalsByToken(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "a", holders[0].TenantID)
	assert.Equal(t, "b", holders[1].TenantID)

	holders, err = s.PrincipalsByToken(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, holders)
}

func TestPutPrincipal_TokenUniqueWithinTenant(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p1", TenantID: "a", AccessToken: "tok"}))
	err := s.PutPrincipal(ctx, storage.Principal{ID: "p2", TenantID: "a", AccessToken: "tok"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Updating the same principal is allowed.
	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p1", TenantID: "a", AccessToken: "tok", Status: storage.StatusDisabled}))
	p, err := s.PrincipalByToken(ctx, "a", "tok")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusDisabled, p.Status)
}

func TestPutPrincipal_TokenRotation(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p1", TenantID: "a", AccessToken: "old"}))
	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p1", TenantID: "a", AccessToken: "new"}))

	_, err := s.PrincipalByToken(ctx, "a", "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	holders, err := s.PrincipalsByToken(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, holders)
	assert.False(t, mr.Exists(s.tokenKey("old")))

	p, err := s.PrincipalByToken(ctx, "a", "new")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	index, err := mr.Get("test:principal:a:p1")
	require.NoError(t, err)
	assert.Equal(t, s.tokenKey("new"), index)

	// Rotation only touches the rotating tenant's entry.
	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p2", TenantID: "b", AccessToken: "new"}))
	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p1", TenantID: "a", AccessToken: "newer"}))
	p, err = s.PrincipalByToken(ctx, "b", "new")
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)
}

func TestCorruptPrincipalRecord(t *testing.T) {
	s, mr := newTestStore(t)

	mr.HSet(s.tokenKey("tok"), "a", "{not json")
	_, err := s.PrincipalsByToken(context.Background(), "tok")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestBackendFailureIsNotNotFound(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, err := s.TenantBySubdomain(context.Background(), "acme")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
