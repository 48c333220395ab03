package extension

import (
	"github.com/xraph/iptu"
	"github.com/xraph/iptu/audit_hook"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/plugin"
	"github.com/xraph/iptu/store"
	"github.com/xraph/iptu/transfer"
)

// Option configures the IPTU Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithCustody sets the account payments arrive in and are forwarded from.
// Register fails without one.
func WithCustody(c transfer.Custody) Option {
	return func(e *Extension) {
		e.custody = c
	}
}

// WithLedgerOption passes an iptu.Option through to the underlying engine.
func WithLedgerOption(opt iptu.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, iptu.WithPlugin(p))
	}
}

// WithAudit registers the audit hook writing to r.
func WithAudit(r audithook.Recorder, opts ...audithook.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, iptu.WithPlugin(audithook.New(r, opts...)))
	}
}

// WithMetrics registers the metrics plugin on the forge app's metrics.
func WithMetrics() Option {
	return func(e *Extension) { e.metrics = true }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithRoles sets the admin and treasury identities seeded on first start.
func WithRoles(admin, treasury identity.Identity) Option {
	return func(e *Extension) {
		e.config.Admin = admin.String()
		e.config.Treasury = treasury.String()
	}
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension will auto-construct the appropriate store backend (postgres/sqlite/mongo)
// based on the grove driver type. Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
