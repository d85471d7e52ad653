package auth

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/sellside/pkg/alert"
	"github.com/rhuss/sellside/pkg/storage"
	"github.com/rhuss/sellside/pkg/storage/memory"
	"github.com/rhuss/sellside/pkg/tenant"
)

// recordingAlerter captures alerts for assertions.
type recordingAlerter struct {
	collisions []alert.TokenCollision
}

func (r *recordingAlerter) TokenCollision(_ context.Context, c alert.TokenCollision) {
	r.collisions = append(r.collisions, c)
}

// fixture is a directory seeded with the tenants used across this package's
// tests, plus a resolver over it.
type fixture struct {
	store    *memory.Store
	alerts   *recordingAlerter
	logs     *bytes.Buffer
	resolver *Resolver
}

func newFixture(t *testing.T, tenantCfg tenant.Config, opts ...AuthenticatorOption) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	for _, tn := range []storage.Tenant{
		{ID: "acme", Subdomain: "acme"},
		{ID: "beta", Subdomain: "beta", VirtualHost: "ads.beta-news.com"},
		{ID: "gamma", Subdomain: "gamma"},
		{ID: "a", Subdomain: "tenant-a"},
		{ID: "b", Subdomain: "tenant-b"},
		{ID: "paused", Subdomain: "paused", Status: storage.StatusSuspended},
	} {
		require.NoError(t, s.PutTenant(ctx, tn))
	}
	for _, p := range []storage.Principal{
		{ID: "buyer-acme", TenantID: "acme", AccessToken: "tok-acme"},
		{ID: "buyer-beta", TenantID: "beta", AccessToken: "tok-beta"},
		{ID: "buyer-gamma", TenantID: "gamma", AccessToken: "tok-gamma"},
		{ID: "buyer-paused", TenantID: "paused", AccessToken: "tok-paused"},
		{ID: "retired", TenantID: "acme", AccessToken: "tok-retired", Status: storage.StatusDisabled},
	} {
		require.NoError(t, s.PutPrincipal(ctx, p))
	}

	f := &fixture{store: s, alerts: &recordingAlerter{}, logs: &bytes.Buffer{}}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if tenantCfg.ProductHosts == nil {
		tenantCfg.ProductHosts = []string{"sales.example.com"}
	}
	opts = append([]AuthenticatorOption{WithAlerter(f.alerts), WithAuthenticatorLogger(logger)}, opts...)
	f.resolver = NewResolver(
		tenant.NewLocator(s, tenantCfg, logger),
		NewTokenAuthenticator(s, opts...),
		s,
		logger,
	)
	return f
}

// seedSharedToken stores the same token under tenants a and b, in the given
// order.
func (f *fixture) seedSharedToken(t *testing.T, token string, tenants ...string) {
	t.Helper()
	for _, id := range tenants {
		require.NoError(t, f.store.PutPrincipal(context.Background(), storage.Principal{
			ID: "p-" + id, TenantID: id, AccessToken: token,
		}))
	}
}

func hdr(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

// metricValue reads a counter or gauge.
func metricValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	if m.Gauge != nil {
		return m.GetGauge().GetValue()
	}
	return m.GetCounter().GetValue()
}

// tenantCfg returns the default Locator settings used by most tests.
func tenantCfg() tenant.Config {
	return tenant.Config{}
}
