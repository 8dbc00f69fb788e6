package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Config selects the backing store. Driver "pgx" is the daemon default;
// "sqlite" backs the batch CLI and local runs (":memory:" DSN included).
type Config struct {
	Driver          string
	DSN             string
	MaxConns        int
	MaxConnLifetime time.Duration
	PingTimeout     time.Duration
}

// Open connects and verifies the database is reachable.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = "pgx"
	}
	if driver != "pgx" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	logger.Info("connecting to database", "driver", driver)
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writes; a single conn avoids SQLITE_BUSY
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	logger.Info("successfully connected to database")
	return db, nil
}

// EnsureSchema bootstraps the tables. On Postgres the DDL runs under an
// advisory lock so concurrent daemon/worker startups serialize.
func EnsureSchema(ctx context.Context, db *sql.DB, driver string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if driver == "pgx" {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	source_path TEXT NOT NULL,
	format TEXT NOT NULL,
	hash_hex TEXT NOT NULL,
	status TEXT NOT NULL,
	uploaded_at TEXT NOT NULL,
	UNIQUE (tenant_id, hash_hex)
);

CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	vendor_name TEXT NOT NULL,
	invoice_number TEXT NOT NULL DEFAULT '',
	tx_date TEXT NOT NULL DEFAULT '',
	amount TEXT NOT NULL DEFAULT '0',
	currency_code TEXT NOT NULL DEFAULT 'USD',
	category TEXT NOT NULL DEFAULT 'Other',
	document_id TEXT NOT NULL UNIQUE,
	valid BOOLEAN NOT NULL DEFAULT FALSE,
	raw_text TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoices_tenant_date ON invoices(tenant_id, tx_date);
CREATE INDEX IF NOT EXISTS idx_invoices_tenant_vendor ON invoices(tenant_id, vendor_name);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// rebind rewrites $N placeholders to ? for sqlite. Queries are authored in
// Postgres form.
func rebind(driver, query string) string {
	if driver != "sqlite" {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('?')
		i = j - 1
	}
	return b.String()
}

// argN builds the next placeholder for dynamically assembled filters.
func argN(n int) string {
	return "$" + strconv.Itoa(n)
}
