package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/sellside/pkg/storage"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.PutTenant(context.Background(), storage.Tenant{ID: "acme", Subdomain: "acme", Status: storage.StatusActive}))
	require.NoError(t, s.PutTenant(context.Background(), storage.Tenant{ID: "beta", Subdomain: "beta", VirtualHost: "ads.beta-news.com", Status: storage.StatusActive}))
	require.NoError(t, s.PutPrincipal(context.Background(), storage.Principal{ID: "p-acme", TenantID: "acme", AccessToken: "tok-acme"}))
	require.NoError(t, s.PutPrincipal(context.Background(), storage.Principal{ID: "p-beta", TenantID: "beta", AccessToken: "tok-beta"}))
	return s
}

func TestTenantLookups(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	got, err := s.TenantByID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Subdomain)

	got, err = s.TenantBySubdomain(ctx, "BETA")
	require.NoError(t, err)
	assert.Equal(t, "beta", got.ID)

	got, err = s.TenantByVirtualHost(ctx, "Ads.Beta-News.com:443")
	require.NoError(t, err)
	assert.Equal(t, "beta", got.ID)

	_, err = s.TenantBySubdomain(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.TenantByVirtualHost(ctx, "nope.example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.TenantByID(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReturnedTenantIsACopy(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	got, err := s.TenantByID(ctx, "acme")
	require.NoError(t, err)
	got.Subdomain = "mutated"

	again, err := s.TenantByID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", again.Subdomain)
}

func TestPutTenant_Conflicts(t *testing.T) {
	s := seeded(t)

	err := s.PutTenant(context.Background(), storage.Tenant{ID: "other", Subdomain: "acme"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	err = s.PutTenant(context.Background(), storage.Tenant{ID: "other", VirtualHost: "ads.beta-news.com"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Replacing a tenant with itself is fine and reindexes.
	require.NoError(t, s.PutTenant(context.Background(), storage.Tenant{ID: "acme", Subdomain: "acme-new"}))
	_, err = s.TenantBySubdomain(context.Background(), "acme")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPrincipalByToken_ScopedToTenant(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	p, err := s.PrincipalByToken(ctx, "acme", "tok-acme")
	require.NoError(t, err)
	assert.Equal(t, "p-acme", p.ID)

	_, err = s.PrincipalByToken(ctx, "beta", "tok-acme")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPutPrincipal_TokenUniqueWithinTenant(t *testing.T) {
	s := seeded(t)

	err := s.PutPrincipal(context.Background(), storage.Principal{ID: "p-acme-2", TenantID: "acme", AccessToken: "tok-acme"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Same token under a different tenant is storable (and detectable).
	require.NoError(t, s.PutPrincipal(context.Background(), storage.Principal{ID: "p-beta-dup", TenantID: "beta", AccessToken: "tok-acme"}))

	holders, err := s.PrincipalsByToken(context.Background(), "tok-acme")
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "acme", holders[0].TenantID)
	assert.Equal(t, "beta", holders[1].TenantID)
}

func TestPutPrincipal_TokenRotation(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p-acme", TenantID: "acme", AccessToken: "tok-acme-2", Status: storage.StatusActive}))

	_, err := s.PrincipalByToken(ctx, "acme", "tok-acme")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	holders, err := s.PrincipalsByToken(ctx, "tok-acme")
	require.NoError(t, err)
	assert.Empty(t, holders)

	p, err := s.PrincipalByToken(ctx, "acme", "tok-acme-2")
	require.NoError(t, err)
	assert.Equal(t, "p-acme", p.ID)

	// The released token can now be issued to another principal.
	require.NoError(t, s.PutPrincipal(ctx, storage.Principal{ID: "p-acme-2", TenantID: "acme", AccessToken: "tok-acme"}))
}

func TestPrincipalsByToken_Empty(t *testing.T) {
	s := seeded(t)

	holders, err := s.PrincipalsByToken(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, holders)
}
