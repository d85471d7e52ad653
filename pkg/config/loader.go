package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/sellside/pkg/sales"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SELLSIDE_CONFIG env, ./config.yaml, /etc/sellside/config.yaml)
//  3. SELLSIDE_* environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. SELLSIDE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/sellside/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/sellside/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. The value field wins when both are set.
func resolveFileReferences(cfg *Config) error {
	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// storage.redis.url_file -> storage.redis.url
	if cfg.Storage.Redis.URLFile != "" && cfg.Storage.Redis.URL == "" {
		val, err := readSecretFile(cfg.Storage.Redis.URLFile)
		if err != nil {
			return fmt.Errorf("storage.redis.url_file: %w", err)
		}
		cfg.Storage.Redis.URL = val
	}

	// storage.memory.principals[*].access_token_file -> access_token
	for i := range cfg.Storage.Memory.Principals {
		p := &cfg.Storage.Memory.Principals[i]
		if p.AccessTokenFile != "" && p.AccessToken == "" {
			val, err := readSecretFile(p.AccessTokenFile)
			if err != nil {
				return fmt.Errorf("storage.memory.principals[%d].access_token_file: %w", i, err)
			}
			p.AccessToken = val
		}
	}

	// catalog.file is appended to catalog.tenants.
	if cfg.Catalog.File != "" {
		data, err := os.ReadFile(cfg.Catalog.File)
		if err != nil {
			return fmt.Errorf("catalog.file: %w", err)
		}
		var tenants []sales.TenantCatalog
		if err := yaml.Unmarshal(data, &tenants); err != nil {
			return fmt.Errorf("catalog.file: %w", err)
		}
		cfg.Catalog.Tenants = append(cfg.Catalog.Tenants, tenants...)
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
