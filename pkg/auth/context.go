package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rhuss/sellside/pkg/observability"
	"github.com/rhuss/sellside/pkg/tenant"
)

// ErrAlreadyBound is returned when binding a context that already carries a
// live request binding.
var ErrAlreadyBound = errors.New("request context already bound")

// RequestContext is the identity a request runs as. It is immutable.
type RequestContext struct {
	tenantID    string
	principalID string
	method      tenant.Method
}

// NewRequestContext creates a RequestContext. All fields are required.
func NewRequestContext(tenantID, principalID string, method tenant.Method) (RequestContext, error) {
	if tenantID == "" || principalID == "" || method == "" {
		return RequestContext{}, errors.New("tenant id, principal id and resolution method are required")
	}
	return RequestContext{tenantID: tenantID, principalID: principalID, method: method}, nil
}

// TenantID returns the tenant the request is bound to.
func (rc RequestContext) TenantID() string { return rc.tenantID }

// PrincipalID returns the authenticated principal.
func (rc RequestContext) PrincipalID() string { return rc.principalID }

// Method returns the signal that identified the tenant.
func (rc RequestContext) Method() tenant.Method { return rc.method }

// bindingKey is a private type for the binding context key.
type bindingKey struct{}

type binding struct {
	rc       RequestContext
	released atomic.Bool
}

// ReleaseFunc tears down a binding. It is safe to call more than once.
type ReleaseFunc func()

// Bind attaches rc to a context derived from ctx. The binding lives only in
// the returned context, so concurrent requests never observe each other's
// identity. Callers must defer the ReleaseFunc; it cancels the derived
// context and makes FromContext report no binding.
func Bind(ctx context.Context, rc RequestContext) (context.Context, ReleaseFunc, error) {
	if rc.tenantID == "" {
		return nil, nil, errors.New("binding an empty request context")
	}
	if b, ok := ctx.Value(bindingKey{}).(*binding); ok && !b.released.Load() {
		return nil, nil, ErrAlreadyBound
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	b := &binding{rc: rc}
	ctx, cancel := context.WithCancel(ctx)
	observability.BoundContextsActive.Inc()

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.released.Store(true)
			cancel()
			observability.BoundContextsActive.Dec()
		})
	}
	return context.WithValue(ctx, bindingKey{}, b), release, nil
}

// FromContext returns the bound request identity. It reports false if ctx was
// never bound or the binding has been released.
func FromContext(ctx context.Context) (RequestContext, bool) {
	b, ok := ctx.Value(bindingKey{}).(*binding)
	if !ok || b.released.Load() {
		return RequestContext{}, false
	}
	return b.rc, true
}

// LogAttrs returns the bound identity as log attributes, or nil.
func LogAttrs(ctx context.Context) []slog.Attr {
	rc, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return []slog.Attr{
		slog.String("tenant_id", rc.tenantID),
		slog.String("principal_id", rc.principalID),
		slog.String("resolution_method", string(rc.method)),
	}
}
