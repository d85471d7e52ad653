package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/sellside/pkg/alert"
	"github.com/rhuss/sellside/pkg/debug"
	"github.com/rhuss/sellside/pkg/observability"
	"github.com/rhuss/sellside/pkg/storage"
)

// Authentication is the outcome of a successful token check.
type Authentication struct {
	PrincipalID string

	// TenantID is the principal's owning tenant. On the global path this is
	// the tenant the token was found under, which the caller must adopt.
	TenantID string

	// Global is set when no tenant hint was given and the tenant was
	// identified by an unscoped token lookup.
	Global bool
}

// TokenAuthenticator maps a bearer token, optionally scoped by a tenant hint,
// to a principal.
type TokenAuthenticator struct {
	store          storage.PrincipalStore
	alerter        alert.Alerter
	globalFallback bool
	logger         *slog.Logger
	now            func() time.Time
}

// AuthenticatorOption configures a TokenAuthenticator.
type AuthenticatorOption func(*TokenAuthenticator)

// WithAlerter sets the alerter notified of token collisions.
func WithAlerter(a alert.Alerter) AuthenticatorOption {
	return func(t *TokenAuthenticator) { t.alerter = a }
}

// WithGlobalFallback enables or disables the unscoped token lookup used when
// no tenant hint is available. Enabled by default.
func WithGlobalFallback(enabled bool) AuthenticatorOption {
	return func(t *TokenAuthenticator) { t.globalFallback = enabled }
}

// WithAuthenticatorLogger sets the structured logger.
func WithAuthenticatorLogger(l *slog.Logger) AuthenticatorOption {
	return func(t *TokenAuthenticator) { t.logger = l }
}

// NewTokenAuthenticator creates an authenticator over the principal store.
func NewTokenAuthenticator(store storage.PrincipalStore, opts ...AuthenticatorOption) *TokenAuthenticator {
	t := &TokenAuthenticator{
		store:          store,
		globalFallback: true,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.alerter == nil {
		t.alerter = alert.NewLogAlerter(t.logger)
	}
	return t
}

// Authenticate checks token. With a tenant hint the lookup is scoped to that
// tenant. Without one, the token is looked up across all tenants and must
// belong to exactly one.
func (t *TokenAuthenticator) Authenticate(ctx context.Context, token, tenantHint string) (Authentication, error) {
	if token == "" {
		return Authentication{}, ErrMissingToken
	}
	debug.Log("auth", "authenticating token",
		"token_fingerprint", storage.TokenFingerprint(token),
		"tenant_hint", tenantHint,
		"global_fallback", t.globalFallback,
	)
	if tenantHint != "" {
		return t.scoped(ctx, token, tenantHint)
	}
	if !t.globalFallback {
		return Authentication{}, newError(CodeInvalidToken, "", errors.New("no tenant resolved and global fallback is disabled"))
	}
	return t.global(ctx, token)
}

func (t *TokenAuthenticator) scoped(ctx context.Context, token, tenantID string) (Authentication, error) {
	p, err := t.store.PrincipalByToken(ctx, tenantID, token)
	if errors.Is(err, storage.ErrNotFound) {
		return Authentication{}, ErrInvalidToken
	}
	if err != nil {
		return Authentication{}, fmt.Errorf("looking up principal: %w", err)
	}
	if !p.Status.Active() {
		return Authentication{}, newError(CodeInvalidToken, "", fmt.Errorf("principal %s is %s", p.ID, p.Status))
	}
	return Authentication{PrincipalID: p.ID, TenantID: tenantID}, nil
}

func (t *TokenAuthenticator) global(ctx context.Context, token string) (Authentication, error) {
	holders, err := t.store.PrincipalsByToken(ctx, token)
	if err != nil {
		return Authentication{}, fmt.Errorf("looking up principals: %w", err)
	}
	debug.Log("auth", "global token lookup", "holders", len(holders))

	switch len(holders) {
	case 0:
		return Authentication{}, ErrInvalidToken
	case 1:
		p := holders[0]
		if !p.Status.Active() {
			return Authentication{}, newError(CodeInvalidToken, "", fmt.Errorf("principal %s is %s", p.ID, p.Status))
		}
		return Authentication{PrincipalID: p.ID, TenantID: p.TenantID, Global: true}, nil
	}

	// The same token under several tenants is a provisioning defect. Never
	// pick one.
	tenants := make([]string, 0, len(holders))
	for _, p := range holders {
		tenants = append(tenants, p.TenantID)
	}
	observability.TokenCollisionsTotal.Inc()
	t.alerter.TokenCollision(ctx, alert.TokenCollision{
		Type:        alert.TypeTokenCollision,
		Fingerprint: storage.TokenFingerprint(token),
		TenantIDs:   tenants,
		DetectedAt:  t.now().UTC(),
	})
	return Authentication{}, newError(CodeAmbiguousToken, "", fmt.Errorf("token held by %d tenants", len(tenants)))
}
