package extension

import (
	"context"
	"testing"

	"github.com/xraph/iptu/audit_hook"
	"github.com/xraph/iptu/transfer"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("IPTU_ADMIN", "prefeito")
	t.Setenv("IPTU_TREASURY", "sefaz")
	t.Setenv("IPTU_DISABLE_MIGRATE", "true")
	t.Setenv("IPTU_GROVE_DATABASE", "tributos")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	want := Config{
		Admin:          "prefeito",
		Treasury:       "sefaz",
		DisableMigrate: true,
		GroveDatabase:  "tributos",
	}
	if cfg != want {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestConfigFromEnv_InvalidBool(t *testing.T) {
	t.Setenv("IPTU_DISABLE_MIGRATE", "talvez")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for invalid boolean")
	}
}

func TestApplyEnv_KeepsUnsetFields(t *testing.T) {
	t.Setenv("IPTU_TREASURY", "sefaz-2")

	cfg, err := applyEnv(Config{Admin: "prefeito", Treasury: "sefaz"})
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Admin != "prefeito" {
		t.Errorf("Admin = %q, want prefeito", cfg.Admin)
	}
	if cfg.Treasury != "sefaz-2" {
		t.Errorf("Treasury = %q, want sefaz-2", cfg.Treasury)
	}
}

func TestMergeConfigurations(t *testing.T) {
	e := New()

	tests := []struct {
		name         string
		yaml         Config
		programmatic Config
		want         Config
	}{
		{
			name:         "yaml wins for strings",
			yaml:         Config{Admin: "prefeito", Treasury: "sefaz"},
			programmatic: Config{Admin: "vice", Treasury: "caixa"},
			want:         Config{Admin: "prefeito", Treasury: "sefaz"},
		},
		{
			name:         "programmatic fills gaps",
			yaml:         Config{Admin: "prefeito"},
			programmatic: Config{Treasury: "caixa", GroveDatabase: "tributos"},
			want:         Config{Admin: "prefeito", Treasury: "caixa", GroveDatabase: "tributos"},
		},
		{
			name:         "programmatic disable migrate",
			yaml:         Config{},
			programmatic: Config{DisableMigrate: true},
			want:         Config{DisableMigrate: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.mergeConfigurations(tt.yaml, tt.programmatic)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	vault := transfer.NewVault()
	e := New(
		WithCustody(vault),
		WithRoles("prefeito", "sefaz"),
		WithDisableMigrate(),
		WithGroveDatabase("tributos"),
		WithMetrics(),
		WithAudit(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error { return nil })),
	)

	if e.custody != vault {
		t.Error("custody not set")
	}
	if e.config.Admin != "prefeito" || e.config.Treasury != "sefaz" {
		t.Errorf("roles = %q/%q", e.config.Admin, e.config.Treasury)
	}
	if !e.config.DisableMigrate {
		t.Error("DisableMigrate not set")
	}
	if !e.useGrove || e.config.GroveDatabase != "tributos" {
		t.Error("grove database not set")
	}
	if !e.metrics {
		t.Error("metrics not enabled")
	}
	if e.Engine() != nil {
		t.Error("engine must be nil before Register")
	}

	// roles, skip migrate, audit plugin
	if got := len(e.buildLedgerOpts()); got != 3 {
		t.Errorf("buildLedgerOpts returned %d options, want 3", got)
	}
}
