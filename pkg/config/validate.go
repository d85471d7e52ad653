package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be in range.
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	for name, path := range map[string]string{"server.mcp_path": c.Server.MCPPath, "server.a2a_path": c.Server.A2APath} {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, fmt.Errorf("%s must start with \"/\", got %q", name, path))
		}
	}
	if c.Server.MCPPath == c.Server.A2APath {
		errs = append(errs, fmt.Errorf("server.mcp_path and server.a2a_path must differ"))
	}

	switch c.Tenancy.ConflictPolicy {
	case "prefer_host", "reject", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("tenancy.conflict_policy must be \"prefer_host\" or \"reject\", got %q", c.Tenancy.ConflictPolicy))
	}

	switch c.Storage.Type {
	case "memory":
		errs = append(errs, c.Storage.Memory.validate()...)
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	case "redis":
		if c.Storage.Redis.URL == "" && c.Storage.Redis.URLFile == "" {
			errs = append(errs, fmt.Errorf("storage.redis.url or storage.redis.url_file is required when storage.type is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\" or \"redis\", got %q", c.Storage.Type))
	}

	if c.Agent.MaxTasksPerTenant < 0 {
		errs = append(errs, fmt.Errorf("agent.max_tasks_per_tenant must be >= 0, got %d", c.Agent.MaxTasksPerTenant))
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("observability.log_level must be trace, debug, info, warn or error, got %q", c.Observability.LogLevel))
	}
	switch c.Observability.LogFormat {
	case "json", "text", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("observability.log_format must be \"json\" or \"text\", got %q", c.Observability.LogFormat))
	}

	return errors.Join(errs...)
}

func (m MemoryConfig) validate() []error {
	var errs []error
	tenants := make(map[string]bool, len(m.Tenants))
	for i, t := range m.Tenants {
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("storage.memory.tenants[%d].id is required", i))
		}
		if !validStatus(t.Status) {
			errs = append(errs, fmt.Errorf("storage.memory.tenants[%d].status %q is invalid", i, t.Status))
		}
		tenants[t.ID] = true
	}
	for i, p := range m.Principals {
		if p.ID == "" || p.TenantID == "" {
			errs = append(errs, fmt.Errorf("storage.memory.principals[%d]: id and tenant_id are required", i))
		}
		if p.AccessToken == "" && p.AccessTokenFile == "" {
			errs = append(errs, fmt.Errorf("storage.memory.principals[%d]: access_token or access_token_file is required", i))
		}
		if p.TenantID != "" && !tenants[p.TenantID] {
			errs = append(errs, fmt.Errorf("storage.memory.principals[%d]: unknown tenant %q", i, p.TenantID))
		}
		if !validStatus(p.Status) {
			errs = append(errs, fmt.Errorf("storage.memory.principals[%d].status %q is invalid", i, p.Status))
		}
	}
	return errs
}

func validStatus(s string) bool {
	switch s {
	case "", "active", "suspended", "disabled":
		return true
	}
	return false
}
