package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/sellside/pkg/debug"
	"github.com/rhuss/sellside/pkg/observability"
	"github.com/rhuss/sellside/pkg/storage"
	"github.com/rhuss/sellside/pkg/tenant"
)

// Resolver runs the identity pipeline shared by every protocol adapter:
// locate the tenant, authenticate the token, bind the request context. The
// steps run strictly in that order because each consumes the previous one's
// output.
type Resolver struct {
	locator *tenant.Locator
	authn   *TokenAuthenticator
	tenants storage.TenantStore
	logger  *slog.Logger
}

// NewResolver creates a Resolver. tenants is used to check the status of a
// tenant identified by the global token lookup. A nil logger uses
// slog.Default().
func NewResolver(locator *tenant.Locator, authn *TokenAuthenticator, tenants storage.TenantStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{locator: locator, authn: authn, tenants: tenants, logger: logger}
}

// Resolve identifies the tenant and principal of a request and binds them to
// a derived context. On success the caller must defer the ReleaseFunc. On
// failure no binding exists and the error is an *AuthError, ErrAlreadyBound,
// the context's error, or a wrapped store failure.
func (r *Resolver) Resolve(ctx context.Context, h http.Header, token string) (context.Context, ReleaseFunc, error) {
	m, err := r.locator.Locate(ctx, h)
	if err != nil {
		return nil, nil, r.fail(ctx, locateError(err), m)
	}
	debug.Log("tenancy", "tenant signals evaluated",
		"host", h.Get("Host"),
		"tenant_id", m.TenantID(),
		"resolution_method", string(m.Method),
		"conflict", m.Conflict,
	)
	// Tenant status is checked only after the credential is verified, so an
	// unauthenticated caller cannot tell a suspended tenant from any other.
	a, err := r.authn.Authenticate(ctx, token, m.TenantID())
	if err != nil {
		if errors.Is(err, ErrMissingToken) {
			r.diagnoseMissingCredential(ctx, h)
		}
		return nil, nil, r.fail(ctx, err, m)
	}

	method := m.Method
	if m.Found() && !m.Tenant.Status.Active() {
		return nil, nil, r.fail(ctx, newError(CodeTenantInactive, "", fmt.Errorf("tenant %s is %s", m.Tenant.ID, m.Tenant.Status)), m)
	}
	if a.Global {
		method = tenant.MethodGlobalFallback
		if err := r.checkPromotedTenant(ctx, a.TenantID); err != nil {
			return nil, nil, r.fail(ctx, err, m)
		}
	}

	rc, err := NewRequestContext(a.TenantID, a.PrincipalID, method)
	if err != nil {
		return nil, nil, err
	}
	bound, release, err := Bind(ctx, rc)
	if err != nil {
		return nil, nil, err
	}

	observability.TenantResolutionsTotal.WithLabelValues(string(method)).Inc()
	r.logger.LogAttrs(ctx, slog.LevelDebug, "request identity bound", LogAttrs(bound)...)
	return bound, release, nil
}

// checkPromotedTenant verifies that the tenant adopted from a global token
// match exists and is active.
func (r *Resolver) checkPromotedTenant(ctx context.Context, tenantID string) error {
	t, err := r.tenants.TenantByID(ctx, tenantID)
	if errors.Is(err, storage.ErrNotFound) {
		return newError(CodeInvalidToken, "", fmt.Errorf("token owner %s has no tenant record", tenantID))
	}
	if err != nil {
		return fmt.Errorf("loading tenant: %w", err)
	}
	if !t.Status.Active() {
		return newError(CodeTenantInactive, "", fmt.Errorf("tenant %s is %s", t.ID, t.Status))
	}
	return nil
}

// locateError maps Locator failures onto the auth error taxonomy.
func locateError(err error) error {
	var se *tenant.SignalError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return newError(CodeTenantNotFound, se.Value, err)
	case errors.Is(err, tenant.ErrConflictingSignals):
		return newError(CodeConflictingSignals, se.Value, err)
	default:
		return err
	}
}

func (r *Resolver) fail(ctx context.Context, err error, m tenant.Match) error {
	var ae *AuthError
	if !errors.As(err, &ae) {
		r.logger.ErrorContext(ctx, "resolving request identity", "error", err)
		return err
	}

	observability.AuthFailuresTotal.WithLabelValues(string(ae.Code)).Inc()
	attrs := []slog.Attr{slog.String("code", string(ae.Code))}
	if m.Found() {
		attrs = append(attrs,
			slog.String("tenant_id", m.TenantID()),
			slog.String("resolution_method", string(m.Method)),
		)
	}
	if ae.Err != nil {
		attrs = append(attrs, slog.String("error", ae.Err.Error()))
	}
	level := slog.LevelWarn
	if ae.Code == CodeAmbiguousToken {
		level = slog.LevelError
	}
	r.logger.LogAttrs(ctx, level, "request identity rejected", attrs...)
	return ae
}

// diagnoseMissingCredential logs enough context to tell a client that sent
// no credential from a proxy that stripped it on the way in.
func (r *Resolver) diagnoseMissingCredential(ctx context.Context, h http.Header) {
	r.logger.WarnContext(ctx, "no credential reached the server; if the client sent one, an intermediary proxy may be stripping it",
		"host", h.Get("Host"),
		"forwarded_for_present", h.Get("X-Forwarded-For") != "",
		"via_present", h.Get("Via") != "",
		"authorization_present", h.Get("Authorization") != "",
	)
}
