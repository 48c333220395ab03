package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the IPTU store (PostgreSQL).
var Migrations = migrate.NewGroup("iptu")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_iptu_assessments",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS iptu_assessments (
    id                 TEXT PRIMARY KEY,
    registration_code  TEXT NOT NULL,
    taxpayer           TEXT NOT NULL,
    year               INT NOT NULL,
    total_amount       BIGINT NOT NULL CHECK (total_amount > 0),
    installment_count  INT NOT NULL CHECK (installment_count > 0),
    installment_amount BIGINT NOT NULL,
    paid_count         INT NOT NULL DEFAULT 0,
    paid_amount        BIGINT NOT NULL DEFAULT 0,
    active             BOOLEAN NOT NULL DEFAULT TRUE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_iptu_assessments_code_year ON iptu_assessments (registration_code, year);
CREATE INDEX IF NOT EXISTS idx_iptu_assessments_taxpayer ON iptu_assessments (taxpayer, year);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS iptu_assessments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_iptu_installments",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS iptu_installments (
    id            TEXT PRIMARY KEY,
    assessment_id TEXT NOT NULL REFERENCES iptu_assessments (id),
    number        INT NOT NULL,
    payer         TEXT NOT NULL,
    amount        BIGINT NOT NULL,
    paid_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_iptu_installments_number ON iptu_installments (assessment_id, number);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS iptu_installments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_iptu_roles",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS iptu_roles (
    id         TEXT PRIMARY KEY,
    admin      TEXT NOT NULL,
    treasury   TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS iptu_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_iptu_events",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS iptu_events (
    id            TEXT PRIMARY KEY,
    seq           BIGINT NOT NULL,
    kind          TEXT NOT NULL,
    assessment_id TEXT NOT NULL DEFAULT '',
    payload       JSONB NOT NULL DEFAULT '{}',
    recorded_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_iptu_events_seq ON iptu_events (seq);
CREATE INDEX IF NOT EXISTS idx_iptu_events_assessment ON iptu_events (assessment_id, seq);
CREATE INDEX IF NOT EXISTS idx_iptu_events_kind ON iptu_events (kind, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS iptu_events`)
				return err
			},
		},
	)
}
