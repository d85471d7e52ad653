package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/sellside/pkg/alert"
	"github.com/rhuss/sellside/pkg/auth"
	"github.com/rhuss/sellside/pkg/config"
	"github.com/rhuss/sellside/pkg/observability"
	"github.com/rhuss/sellside/pkg/sales"
	"github.com/rhuss/sellside/pkg/storage"
	"github.com/rhuss/sellside/pkg/storage/memory"
	"github.com/rhuss/sellside/pkg/storage/postgres"
	redisstore "github.com/rhuss/sellside/pkg/storage/redis"
	"github.com/rhuss/sellside/pkg/tenant"
	"github.com/rhuss/sellside/pkg/transport/a2a"
	"github.com/rhuss/sellside/pkg/transport/mcp"
)

// app holds the long-lived components built from a Config.
type app struct {
	cfg         *config.Config
	directory   storage.Directory
	alertClient *goredis.Client
	handler     http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	dir, err := openDirectory(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening tenant directory: %w", err)
	}
	a := &app{cfg: cfg, directory: dir}

	alerter, err := a.buildAlerter(logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	locator := tenant.NewLocator(dir, tenant.Config{
		ProductHosts:    cfg.Tenancy.ProductHosts,
		ReservedLabels:  cfg.Tenancy.ReservedLabels,
		TenantHeader:    cfg.Tenancy.TenantHeader,
		ProxyHostHeader: cfg.Tenancy.ProxyHostHeader,
		ConflictPolicy:  tenant.ConflictPolicy(cfg.Tenancy.ConflictPolicy),
	}, logger)
	authn := auth.NewTokenAuthenticator(dir,
		auth.WithAlerter(alerter),
		auth.WithGlobalFallback(cfg.Auth.GlobalFallback),
		auth.WithAuthenticatorLogger(logger),
	)
	resolver := auth.NewResolver(locator, authn, dir, logger)
	catalog := sales.NewCatalog(cfg.Catalog.Tenants...)

	mcpSrv := mcp.New(resolver, catalog, mcp.Config{
		Name:    cfg.Agent.Name,
		Version: version,
		Credentials: auth.CredentialOptions{
			AlternateHeader: cfg.Auth.MCPAlternateHeader,
			QueryParam:      cfg.Auth.QueryParam,
		},
		Logger: logger,
	})
	a2aSrv := a2a.New(resolver, catalog, a2a.Config{
		Name:              cfg.Agent.Name,
		Description:       cfg.Agent.Description,
		Version:           version,
		PublicURL:         cfg.Agent.PublicURL,
		Path:              cfg.Server.A2APath,
		Credentials:       auth.CredentialOptions{QueryParam: cfg.Auth.QueryParam},
		MaxTasksPerTenant: cfg.Agent.MaxTasksPerTenant,
		Logger:            logger,
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.MCPPath, observability.MetricsMiddleware("mcp", mcpSrv.Handler()))
	a2aHandler := observability.MetricsMiddleware("a2a", a2aSrv.Handler())
	mux.Handle(cfg.Server.A2APath, a2aHandler)
	mux.Handle("/.well-known/", a2aHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", a.ready)
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}
	a.handler = mux
	return a, nil
}

// Handler returns the root HTTP handler.
func (a *app) Handler() http.Handler { return a.handler }

// ready reports whether the tenant directory is reachable.
func (a *app) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.directory.HealthCheck(ctx); err != nil {
		slog.WarnContext(r.Context(), "readiness check failed", "error", err)
		http.Error(w, "directory unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Close releases the directory and alert connections.
func (a *app) Close() error {
	var errs []error
	if a.alertClient != nil {
		errs = append(errs, a.alertClient.Close())
	}
	errs = append(errs, a.directory.Close())
	return errors.Join(errs...)
}

// buildAlerter always logs alerts and also publishes them to Redis when a
// Redis URL is available.
func (a *app) buildAlerter(logger *slog.Logger) (alert.Alerter, error) {
	alerters := alert.Multi{alert.NewLogAlerter(logger)}

	url := a.cfg.Alerts.RedisURL
	if url == "" && a.cfg.Storage.Type == "redis" {
		url = a.cfg.Storage.Redis.URL
	}
	if url == "" {
		return alerters, nil
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing alerts redis url: %w", err)
	}
	a.alertClient = goredis.NewClient(opts)
	return append(alerters, alert.NewRedisPublisher(a.alertClient, a.cfg.Alerts.RedisChannel, logger)), nil
}

// openDirectory builds the configured tenant directory.
func openDirectory(ctx context.Context, cfg config.StorageConfig) (storage.Directory, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	case "redis":
		return redisstore.New(ctx, redisstore.Config{
			URL:       cfg.Redis.URL,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		s := memory.New()
		if err := seed(ctx, s, cfg.Memory); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// seed loads the configured records into a provisioner.
func seed(ctx context.Context, p storage.Provisioner, cfg config.MemoryConfig) error {
	for _, t := range cfg.Tenants {
		err := p.PutTenant(ctx, storage.Tenant{
			ID:          t.ID,
			Subdomain:   t.Subdomain,
			VirtualHost: t.VirtualHost,
			Status:      storage.Status(t.Status),
		})
		if err != nil {
			return fmt.Errorf("seeding tenant %s: %w", t.ID, err)
		}
	}
	for _, pr := range cfg.Principals {
		err := p.PutPrincipal(ctx, storage.Principal{
			ID:          pr.ID,
			TenantID:    pr.TenantID,
			AccessToken: pr.AccessToken,
			Status:      storage.Status(pr.Status),
		})
		if err != nil {
			return fmt.Errorf("seeding principal %s: %w", pr.ID, err)
		}
	}
	return nil
}
