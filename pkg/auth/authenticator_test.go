package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/sellside/pkg/observability"
	"github.com/rhuss/sellside/pkg/storage"
)

func TestAuthenticate_MissingToken(t *testing.T) {
	f := newFixture(t, tenantCfg())
	_, err := f.resolver.authn.Authenticate(context.Background(), "", "acme")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthenticate_Scoped(t *testing.T) {
	f := newFixture(t, tenantCfg())
	authn := f.resolver.authn

	a, err := authn.Authenticate(context.Background(), "tok-acme", "acme")
	require.NoError(t, err)
	assert.Equal(t, Authentication{PrincipalID: "buyer-acme", TenantID: "acme"}, a)

	// A valid token of another tenant does not authenticate here.
	_, err = authn.Authenticate(context.Background(), "tok-beta", "acme")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = authn.Authenticate(context.Background(), "tok-retired", "acme")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_GlobalUnique(t *testing.T) {
	f := newFixture(t, tenantCfg())

	a, err := f.resolver.authn.Authenticate(context.Background(), "tok-gamma", "")
	require.NoError(t, err)
	assert.Equal(t, "gamma", a.TenantID)
	assert.Equal(t, "buyer-gamma", a.PrincipalID)
	assert.True(t, a.Global)

	_, err = f.resolver.authn.Authenticate(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.resolver.authn.Authenticate(context.Background(), "tok-retired", "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_AmbiguousRegardlessOfOrder(t *testing.T) {
	for _, order := range [][]string{{"a", "b"}, {"b", "a"}} {
		t.Run(order[0]+"-first", func(t *testing.T) {
			f := newFixture(t, tenantCfg())
			f.seedSharedToken(t, "shared-secret", order...)
			before := metricValue(t, observability.TokenCollisionsTotal)

			_, err := f.resolver.authn.Authenticate(context.Background(), "shared-secret", "")
			require.ErrorIs(t, err, ErrAmbiguousToken)

			require.Len(t, f.alerts.collisions, 1)
			c := f.alerts.collisions[0]
			assert.Equal(t, []string{"a", "b"}, c.TenantIDs)
			assert.Equal(t, storage.TokenFingerprint("shared-secret"), c.Fingerprint)
			assert.NotContains(t, c.Fingerprint, "shared-secret")
			assert.False(t, c.DetectedAt.IsZero())
			assert.Equal(t, before+1, metricValue(t, observability.TokenCollisionsTotal))
		})
	}
}

func TestAuthenticate_SharedTokenWithHintIsScoped(t *testing.T) {
	f := newFixture(t, tenantCfg())
	f.seedSharedToken(t, "shared-secret", "a", "b")

	a, err := f.resolver.authn.Authenticate(context.Background(), "shared-secret", "b")
	require.NoError(t, err)
	assert.Equal(t, "p-b", a.PrincipalID)
	assert.Empty(t, f.alerts.collisions)
}

func TestAuthenticate_GlobalFallbackDisabled(t *testing.T) {
	f := newFixture(t, tenantCfg(), WithGlobalFallback(false))

	_, err := f.resolver.authn.Authenticate(context.Background(), "tok-gamma", "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.resolver.authn.Authenticate(context.Background(), "tok-gamma", "gamma")
	assert.NoError(t, err)
}

// brokenPrincipals fails every lookup.
type brokenPrincipals struct{}

var errDown = errors.New("directory unavailable")

func (brokenPrincipals) PrincipalByToken(context.Context, string, string) (*storage.Principal, error) {
	return nil, errDown
}

func (brokenPrincipals) PrincipalsByToken(context.Context, string) ([]storage.Principal, error) {
	return nil, errDown
}

func TestAuthenticate_StoreFailureIsNotAnAuthError(t *testing.T) {
	authn := NewTokenAuthenticator(brokenPrincipals{})

	for _, hint := range []string{"acme", ""} {
		_, err := authn.Authenticate(context.Background(), "tok", hint)
		require.ErrorIs(t, err, errDown)
		var ae *AuthError
		assert.False(t, errors.As(err, &ae))
	}
}
