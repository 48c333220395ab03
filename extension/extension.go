// Package extension provides the Forge extension adapter for the IPTU ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions,
// via YAML configuration files under "extensions.iptu" or "iptu" keys,
// or via IPTU_* environment variables, which take precedence.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/iptu"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/observability"
	"github.com/xraph/iptu/store"
	"github.com/xraph/iptu/store/memory"
	"github.com/xraph/iptu/store/mongo"
	"github.com/xraph/iptu/store/postgres"
	"github.com/xraph/iptu/store/sqlite"
	"github.com/xraph/iptu/transfer"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "iptu"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Municipal property-tax assessment and installment ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the IPTU ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *iptu.Ledger
	store      store.Store
	custody    transfer.Custody
	ledgerOpts []iptu.Option
	useGrove   bool
	metrics    bool
}

// New creates a new IPTU Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying ledger.
// This is nil until Register is called.
func (e *Extension) Engine() *iptu.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.custody == nil {
		return errors.New("iptu: custody is required; use extension.WithCustody")
	}

	if e.store == nil && (e.useGrove || e.config.GroveDatabase != "") {
		s, err := e.resolveGroveStore(fapp)
		if err != nil {
			return err
		}
		e.store = s
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts := e.buildLedgerOpts()
	if e.metrics {
		opts = append(opts, iptu.WithPlugin(
			observability.NewMetricsExtension(observability.FromMetrics(fapp.Metrics())),
		))
	}

	e.engine = iptu.New(e.store, e.custody, opts...)

	return vessel.Provide(fapp.Container(), func() (*iptu.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("iptu: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("iptu: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs iptu.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []iptu.Option {
	opts := make([]iptu.Option, 0, len(e.ledgerOpts)+2)

	if e.config.Admin != "" || e.config.Treasury != "" {
		opts = append(opts, iptu.WithRoles(
			identity.Identity(e.config.Admin),
			identity.Identity(e.config.Treasury),
		))
	}
	if e.config.DisableMigrate {
		opts = append(opts, iptu.WithSkipMigrate())
	}

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// resolveGroveStore builds the store matching the driver of the grove.DB
// registered in the container.
func (e *Extension) resolveGroveStore(fapp forge.App) (store.Store, error) {
	var (
		db  *grove.DB
		err error
	)
	if e.config.GroveDatabase != "" {
		db, err = vessel.InjectNamed[*grove.DB](fapp.Container(), e.config.GroveDatabase)
	} else {
		db, err = vessel.Inject[*grove.DB](fapp.Container())
	}
	if err != nil {
		return nil, fmt.Errorf("iptu: resolve grove database %q: %w", e.config.GroveDatabase, err)
	}

	driver := db.Driver().Name()
	e.Logger().Debug("iptu: using grove store",
		forge.F("database", e.config.GroveDatabase),
		forge.F("driver", driver),
	)

	switch driver {
	case "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("iptu: unsupported grove driver %q", driver)
	}
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources,
// then applies environment overrides.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("iptu: configuration is required but not found in config files; " +
				"ensure 'extensions.iptu' or 'iptu' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	cfg, err := applyEnv(e.config)
	if err != nil {
		return err
	}
	e.config = cfg

	e.Logger().Debug("iptu: configuration loaded",
		forge.F("admin", e.config.Admin),
		forge.F("treasury", e.config.Treasury),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("grove_database", e.config.GroveDatabase),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.iptu" first (namespaced pattern).
	if cm.IsSet("extensions.iptu") {
		if err := cm.Bind("extensions.iptu", &cfg); err == nil {
			e.Logger().Debug("iptu: loaded config from file",
				forge.F("key", "extensions.iptu"),
			)
			return cfg, true
		}
		e.Logger().Warn("iptu: failed to bind extensions.iptu config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "iptu" key.
	if cm.IsSet("iptu") {
		if err := cm.Bind("iptu", &cfg); err == nil {
			e.Logger().Debug("iptu: loaded config from file",
				forge.F("key", "iptu"),
			)
			return cfg, true
		}
		e.Logger().Warn("iptu: failed to bind iptu config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Admin == "" {
		cfg.Admin = defaults.Admin
	}
	if cfg.Treasury == "" {
		cfg.Treasury = defaults.Treasury
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Admin == "" && programmaticConfig.Admin != "" {
		yamlConfig.Admin = programmaticConfig.Admin
	}
	if yamlConfig.Treasury == "" && programmaticConfig.Treasury != "" {
		yamlConfig.Treasury = programmaticConfig.Treasury
	}
	if yamlConfig.GroveDatabase == "" && programmaticConfig.GroveDatabase != "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
