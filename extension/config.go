package extension

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the IPTU extension configuration.
// Fields can be set programmatically via Option functions, loaded from
// YAML configuration files (under "extensions.iptu" or "iptu" keys) or
// overridden from IPTU_* environment variables.
type Config struct {
	// Admin is the identity seeded as administrator on first start.
	Admin string `env:"IPTU_ADMIN" json:"admin" mapstructure:"admin" yaml:"admin"`

	// Treasury is the identity seeded as treasury on first start.
	Treasury string `env:"IPTU_TREASURY" json:"treasury" mapstructure:"treasury" yaml:"treasury"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `env:"IPTU_DISABLE_MIGRATE" json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/sqlite/mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `env:"IPTU_GROVE_DATABASE" json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{}
}

// ConfigFromEnv returns DefaultConfig overridden by IPTU_* environment
// variables.
func ConfigFromEnv() (Config, error) {
	return applyEnv(DefaultConfig())
}

// applyEnv overrides cfg with the IPTU_* variables that are set.
func applyEnv(cfg Config) (Config, error) {
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("iptu: parse env: %w", err)
	}
	return cfg, nil
}
