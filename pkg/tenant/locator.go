package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/rhuss/sellside/pkg/observability"
	"github.com/rhuss/sellside/pkg/storage"
)

// Sentinel errors.
var (
	// ErrTenantNotFound is returned when the explicit tenant header names a
	// tenant that does not exist and no other signal matched.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrConflictingSignals is returned under RejectConflict when the Host
	// and the explicit tenant header name different tenants.
	ErrConflictingSignals = errors.New("conflicting tenant signals")
)

// SignalError carries the header value a locate failure is about.
type SignalError struct {
	Header string
	Value  string
	Err    error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("%s %s=%q", e.Err.Error(), e.Header, e.Value)
}

func (e *SignalError) Unwrap() error { return e.Err }

// Match is the outcome of Locate. The zero Match is the tenant-less outcome.
type Match struct {
	Tenant *storage.Tenant
	Method Method

	// Conflict is set when the explicit header disagreed with the Host and
	// the Host won.
	Conflict bool
}

// Found reports whether a tenant was located.
func (m Match) Found() bool { return m.Tenant != nil }

// TenantID returns the located tenant id, or "".
func (m Match) TenantID() string {
	if m.Tenant == nil {
		return ""
	}
	return m.Tenant.ID
}

// Locator maps request headers to a tenant. It only reads from the store and
// holds no per-request state, so one Locator serves all requests.
type Locator struct {
	store    storage.TenantStore
	cfg      Config
	reserved map[string]bool
	products map[string]bool
	logger   *slog.Logger
}

// NewLocator creates a Locator over the given store. A nil logger uses
// slog.Default().
func NewLocator(store storage.TenantStore, cfg Config, logger *slog.Logger) *Locator {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	l := &Locator{
		store:    store,
		cfg:      cfg,
		reserved: make(map[string]bool),
		products: make(map[string]bool),
		logger:   logger,
	}
	for _, label := range cfg.ReservedLabels {
		l.reserved[strings.ToLower(label)] = true
	}
	for _, host := range cfg.ProductHosts {
		host = storage.NormalizeHost(host)
		if host == "" {
			continue
		}
		l.products[host] = true
		label, _, _ := strings.Cut(host, ".")
		l.reserved[label] = true
	}
	return l
}

// TenantHeader returns the canonical explicit tenant header name.
func (l *Locator) TenantHeader() string { return l.cfg.TenantHeader }

// Locate evaluates the tenant signals in priority order. A store error other
// than storage.ErrNotFound aborts and is returned wrapped.
func (l *Locator) Locate(ctx context.Context, h http.Header) (Match, error) {
	explicit := strings.TrimSpace(h.Get(l.cfg.TenantHeader))

	// 1 + 2: Host header.
	m, err := l.byHost(ctx, h.Get("Host"), MethodHostSubdomain, MethodVirtualHost)
	if err != nil {
		return Match{}, err
	}
	if m.Found() {
		return l.checkConflict(m, explicit)
	}

	// 3: explicit tenant header.
	if explicit != "" {
		t, err := l.lookup(ctx, l.store.TenantBySubdomain, strings.ToLower(explicit))
		if err != nil {
			return Match{}, err
		}
		if t == nil {
			if t, err = l.lookup(ctx, l.store.TenantByID, explicit); err != nil {
				return Match{}, err
			}
		}
		if t != nil {
			return Match{Tenant: t, Method: MethodExplicitHeader}, nil
		}
	}

	// 4: proxy-injected host header.
	m, err = l.byHost(ctx, h.Get(l.cfg.ProxyHostHeader), MethodProxyHeader, MethodProxyHeader)
	if err != nil {
		return Match{}, err
	}
	if m.Found() {
		return m, nil
	}

	// 5: nothing matched. A caller that named a tenant explicitly gets told
	// it does not exist; everyone else is tenant-less.
	if explicit != "" {
		return Match{}, &SignalError{Header: l.cfg.TenantHeader, Value: explicit, Err: ErrTenantNotFound}
	}
	return Match{}, nil
}

// byHost runs the subdomain lookup and then the virtual-host lookup against
// one host value.
func (l *Locator) byHost(ctx context.Context, raw string, subMethod, vhostMethod Method) (Match, error) {
	host := storage.NormalizeHost(raw)
	if host == "" || l.products[host] {
		return Match{}, nil
	}

	if label, ok := l.subdomainLabel(host); ok {
		t, err := l.lookup(ctx, l.store.TenantBySubdomain, label)
		if err != nil {
			return Match{}, err
		}
		if t != nil {
			return Match{Tenant: t, Method: subMethod}, nil
		}
	}

	t, err := l.lookup(ctx, l.store.TenantByVirtualHost, host)
	if err != nil {
		return Match{}, err
	}
	if t != nil {
		return Match{Tenant: t, Method: vhostMethod}, nil
	}
	return Match{}, nil
}

// subdomainLabel returns the first label of host if it can name a tenant.
func (l *Locator) subdomainLabel(host string) (string, bool) {
	if net.ParseIP(host) != nil {
		return "", false
	}
	label, rest, ok := strings.Cut(host, ".")
	if !ok || label == "" || rest == "" || l.reserved[label] {
		return "", false
	}
	return label, true
}

func (l *Locator) lookup(ctx context.Context, fn func(context.Context, string) (*storage.Tenant, error), key string) (*storage.Tenant, error) {
	t, err := fn(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locating tenant: %w", err)
	}
	return t, nil
}

// checkConflict compares a Host-derived match against the explicit header.
func (l *Locator) checkConflict(m Match, explicit string) (Match, error) {
	if explicit == "" || strings.EqualFold(explicit, m.Tenant.ID) || strings.EqualFold(explicit, m.Tenant.Subdomain) {
		return m, nil
	}

	observability.TenantSignalConflictsTotal.Inc()
	l.logger.Warn("tenant header disagrees with host",
		"tenant_id", m.Tenant.ID,
		"resolution_method", string(m.Method),
		"header", l.cfg.TenantHeader,
		"header_value", explicit,
		"policy", string(l.cfg.ConflictPolicy),
	)

	if l.cfg.ConflictPolicy == RejectConflict {
		return Match{}, &SignalError{Header: l.cfg.TenantHeader, Value: explicit, Err: ErrConflictingSignals}
	}
	m.Conflict = true
	return m, nil
}
