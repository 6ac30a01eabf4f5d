package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the billing store (SQLite).
var Migrations = migrate.NewGroup("billing")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_billing_invoices",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS billing_invoices (
    id                   TEXT PRIMARY KEY,
    number               TEXT NOT NULL,
    customer_id          TEXT NOT NULL,
    service_ref          TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'draft',
    currency             TEXT NOT NULL,
    amount_cents         INTEGER NOT NULL DEFAULT 0,
    line_items           TEXT NOT NULL DEFAULT '[]',
    issue_date           TEXT NOT NULL,
    due_date             TEXT NOT NULL,
    requires_deposit     INTEGER NOT NULL DEFAULT 0,
    deposit_amount_cents INTEGER NOT NULL DEFAULT 0,
    deposit_paid_cents   INTEGER NOT NULL DEFAULT 0,
    deposit_paid_at      TEXT,
    final_amount_cents   INTEGER NOT NULL DEFAULT 0,
    final_paid_cents     INTEGER NOT NULL DEFAULT 0,
    final_paid_at        TEXT,
    sent_at              TEXT,
    paid_at              TEXT,
    voided_at            TEXT,
    void_reason          TEXT NOT NULL DEFAULT '',
    notes                TEXT NOT NULL DEFAULT '',
    created_at           TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at           TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_billing_invoices_number ON billing_invoices (number);
CREATE INDEX IF NOT EXISTS idx_billing_invoices_customer ON billing_invoices (customer_id, created_at);
CREATE INDEX IF NOT EXISTS idx_billing_invoices_due ON billing_invoices (status, due_date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS billing_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_billing_payments",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS billing_payments (
    id             TEXT PRIMARY KEY,
    invoice_id     TEXT NOT NULL REFERENCES billing_invoices (id),
    customer_id    TEXT NOT NULL,
    amount_cents   INTEGER NOT NULL CHECK (amount_cents > 0),
    currency       TEXT NOT NULL,
    method         TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'pending',
    gateway_txn_id TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_billing_payments_invoice ON billing_payments (invoice_id, status);
CREATE INDEX IF NOT EXISTS idx_billing_payments_customer ON billing_payments (customer_id, created_at);
CREATE INDEX IF NOT EXISTS idx_billing_payments_txn ON billing_payments (gateway_txn_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS billing_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_billing_scheduled_payments",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS billing_scheduled_payments (
    id             TEXT PRIMARY KEY,
    invoice_id     TEXT NOT NULL REFERENCES billing_invoices (id),
    customer_id    TEXT NOT NULL,
    amount_cents   INTEGER NOT NULL CHECK (amount_cents > 0),
    currency       TEXT NOT NULL,
    scheduled_date TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'scheduled',
    payment_id     TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_billing_sched_invoice ON billing_scheduled_payments (invoice_id, status);
CREATE INDEX IF NOT EXISTS idx_billing_sched_due ON billing_scheduled_payments (status, scheduled_date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS billing_scheduled_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_billing_invoice_locks",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS billing_invoice_locks (
    invoice_id TEXT PRIMARY KEY REFERENCES billing_invoices (id),
    owner      TEXT NOT NULL,
    expires_at TEXT NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS billing_invoice_locks`)
				return err
			},
		},
	)
}
