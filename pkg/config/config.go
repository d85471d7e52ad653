// Package config provides unified configuration for the sellside server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (SELLSIDE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/sellside/pkg/sales"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "SELLSIDE_"

// Config holds all configuration for the sellside server.
type Config struct {
	Server        ServerConfig        `yaml:"server" envPrefix:"SERVER_"`
	Tenancy       TenancyConfig       `yaml:"tenancy" envPrefix:"TENANCY_"`
	Auth          AuthConfig          `yaml:"auth" envPrefix:"AUTH_"`
	Storage       StorageConfig       `yaml:"storage" envPrefix:"STORAGE_"`
	Alerts        AlertsConfig        `yaml:"alerts" envPrefix:"ALERTS_"`
	Agent         AgentConfig         `yaml:"agent" envPrefix:"AGENT_"`
	Catalog       CatalogConfig       `yaml:"catalog" envPrefix:"CATALOG_"`
	Observability ObservabilityConfig `yaml:"observability" envPrefix:"OBSERVABILITY_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int           `yaml:"port" env:"PORT"`                               // default: 8080
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"` // default: 10s
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`       // default: 30s
	MaxBodySize       int64         `yaml:"max_body_size" env:"MAX_BODY_SIZE"`             // default: 1 MiB
	MCPPath           string        `yaml:"mcp_path" env:"MCP_PATH"`                       // default: "/mcp"
	A2APath           string        `yaml:"a2a_path" env:"A2A_PATH"`                       // default: "/a2a"
}

// TenancyConfig holds tenant resolution settings.
type TenancyConfig struct {
	// ProductHosts are the shared hostnames of the deployment. They never
	// name a tenant and their first label is reserved.
	ProductHosts []string `yaml:"product_hosts" env:"PRODUCT_HOSTS"`

	// ReservedLabels replaces the default reserved subdomain labels when set.
	ReservedLabels []string `yaml:"reserved_labels" env:"RESERVED_LABELS"`

	TenantHeader    string `yaml:"tenant_header" env:"TENANT_HEADER"`         // default: "X-Tenant"
	ProxyHostHeader string `yaml:"proxy_host_header" env:"PROXY_HOST_HEADER"` // default: "Apx-Incoming-Host"
	ConflictPolicy  string `yaml:"conflict_policy" env:"CONFLICT_POLICY"`     // "prefer_host" or "reject", default: "prefer_host"
}

// AuthConfig holds credential settings.
type AuthConfig struct {
	// GlobalFallback enables the cross-tenant token lookup for requests that
	// carry no tenant signal. Default: true.
	GlobalFallback bool `yaml:"global_fallback" env:"GLOBAL_FALLBACK"`

	// QueryParam is the query parameter credential fallback. Empty disables
	// it. Default: "access_token".
	QueryParam string `yaml:"query_param" env:"QUERY_PARAM"`

	// MCPAlternateHeader is the raw-token header accepted by the MCP surface.
	// Default: "X-Adcp-Auth".
	MCPAlternateHeader string `yaml:"mcp_alternate_header" env:"MCP_ALTERNATE_HEADER"`
}

// StorageConfig selects and configures the tenant directory.
type StorageConfig struct {
	Type     string         `yaml:"type" env:"TYPE"` // "memory", "postgres" or "redis", default: "memory"
	Memory   MemoryConfig   `yaml:"memory" envPrefix:"MEMORY_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
}

// MemoryConfig seeds the in-process directory.
type MemoryConfig struct {
	Tenants    []TenantRecord    `yaml:"tenants" env:"-"`
	Principals []PrincipalRecord `yaml:"principals" env:"-"`
}

// TenantRecord is a tenant seeded into the memory directory.
type TenantRecord struct {
	ID          string `yaml:"id"`
	Subdomain   string `yaml:"subdomain"`
	VirtualHost string `yaml:"virtual_host"`
	Status      string `yaml:"status"` // default: "active"
}

// PrincipalRecord is a principal seeded into the memory directory.
type PrincipalRecord struct {
	ID              string `yaml:"id"`
	TenantID        string `yaml:"tenant_id"`
	AccessToken     string `yaml:"access_token"`
	AccessTokenFile string `yaml:"access_token_file"` // _file variant for access_token
	Status          string `yaml:"status"`            // default: "active"
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn" env:"DSN"`
	DSNFile        string `yaml:"dsn_file" env:"DSN_FILE"`                 // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns" env:"MAX_CONNS"`               // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"MIGRATE_ON_START"` // default: false
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	URL       string `yaml:"url" env:"URL"`
	URLFile   string `yaml:"url_file" env:"URL_FILE"`     // _file variant for url
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"` // default: "sellside:"
}

// AlertsConfig holds operational alert settings. Alerts are always logged;
// they are also published on a Redis channel when RedisURL is set or the
// directory itself is Redis.
type AlertsConfig struct {
	RedisURL     string `yaml:"redis_url" env:"REDIS_URL"`
	RedisChannel string `yaml:"redis_channel" env:"REDIS_CHANNEL"` // default: "sellside:alerts"
}

// AgentConfig holds the A2A agent card and task settings.
type AgentConfig struct {
	Name              string `yaml:"name" env:"NAME"`
	Description       string `yaml:"description" env:"DESCRIPTION"`
	PublicURL         string `yaml:"public_url" env:"PUBLIC_URL"`
	MaxTasksPerTenant int    `yaml:"max_tasks_per_tenant" env:"MAX_TASKS_PER_TENANT"` // default: 1000
}

// CatalogConfig holds the product inventory served to buyers.
type CatalogConfig struct {
	// File is a YAML file with a list of tenant catalogs, merged with
	// Tenants.
	File    string                `yaml:"file" env:"FILE"`
	Tenants []sales.TenantCatalog `yaml:"tenants" env:"-"`
}

// ObservabilityConfig holds monitoring and logging settings.
type ObservabilityConfig struct {
	Metrics   MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
	LogLevel  string        `yaml:"log_level" env:"LOG_LEVEL"`   // default: "info"
	LogFormat string        `yaml:"log_format" env:"LOG_FORMAT"` // "json" or "text", default: "json"

	// Debug is a comma-separated list of debug categories (tenancy, auth,
	// mcp, a2a, all).
	Debug string `yaml:"debug" env:"DEBUG"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"` // default: true
	Path    string `yaml:"path" env:"PATH"`       // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			MaxBodySize:       1 << 20,
			MCPPath:           "/mcp",
			A2APath:           "/a2a",
		},
		Tenancy: TenancyConfig{
			TenantHeader:    "X-Tenant",
			ProxyHostHeader: "Apx-Incoming-Host",
			ConflictPolicy:  "prefer_host",
		},
		Auth: AuthConfig{
			GlobalFallback:     true,
			QueryParam:         "access_token",
			MCPAlternateHeader: "X-Adcp-Auth",
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
			Redis: RedisConfig{
				KeyPrefix: "sellside:",
			},
		},
		Alerts: AlertsConfig{
			RedisChannel: "sellside:alerts",
		},
		Agent: AgentConfig{
			Name:              "sellside",
			MaxTasksPerTenant: 1000,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}
