package config

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"   // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver, registered as "sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SetupDatabase initializes the database connection and makes sure the
// schema exists
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := OpenDatabase(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	if err := CreateTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// OpenDatabase connects to the given driver and applies pool settings
func OpenDatabase(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == "sqlite" {
		// sqlite allows a single writer; an in-memory database only exists
		// on the connection that created it
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	return db, nil
}

// schema is valid for both PostgreSQL and SQLite. Dates are stored as
// YYYY-MM-DD text and compared lexicographically.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		password VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL,
		company_id VARCHAR(36) NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS company_users (
		company_id VARCHAR(36) NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (company_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS properties (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		address VARCHAR(255) NOT NULL,
		city VARCHAR(255) NOT NULL,
		total_units INTEGER NOT NULL,
		units_count INTEGER NOT NULL DEFAULT 0,
		occupied_units INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS units (
		id VARCHAR(36) PRIMARY KEY,
		property_id VARCHAR(36) NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		company_id VARCHAR(36) NOT NULL,
		unit_number VARCHAR(64) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_occupied BOOLEAN NOT NULL DEFAULT FALSE,
		lease_id VARCHAR(36),
		tenant_id VARCHAR(36),
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (property_id, unit_number)
	)`,
	`CREATE TABLE IF NOT EXISTS prospects (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		company_id VARCHAR(36) NOT NULL,
		property_id VARCHAR(36) NOT NULL,
		unit_id VARCHAR(36) NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS leases (
		id VARCHAR(36) PRIMARY KEY,
		lease_start VARCHAR(10) NOT NULL,
		lease_end VARCHAR(10) NOT NULL,
		status VARCHAR(16) NOT NULL,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		is_future_lease BOOLEAN NOT NULL DEFAULT FALSE,
		is_eviction BOOLEAN NOT NULL DEFAULT FALSE,
		eviction_reason TEXT NOT NULL DEFAULT '',
		tenant_id VARCHAR(36),
		future_tenant_id VARCHAR(36),
		tenant_name VARCHAR(255) NOT NULL DEFAULT '',
		tenant_email VARCHAR(255) NOT NULL DEFAULT '',
		payment_customer_id VARCHAR(255) NOT NULL DEFAULT '',
		unit_id VARCHAR(36) NOT NULL,
		property_id VARCHAR(36) NOT NULL,
		company_id VARCHAR(36) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rent_charges (
		id VARCHAR(36) PRIMARY KEY,
		amount NUMERIC(12,2) NOT NULL,
		description TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		frequency VARCHAR(16) NOT NULL,
		payment_day INTEGER NOT NULL,
		lease_id VARCHAR(36) NOT NULL,
		unit_id VARCHAR(36) NOT NULL,
		property_id VARCHAR(36) NOT NULL,
		company_id VARCHAR(36) NOT NULL,
		tenant_id VARCHAR(36),
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id VARCHAR(36) PRIMARY KEY,
		payment_day VARCHAR(10) NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		balance NUMERIC(12,2) NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		frequency VARCHAR(16) NOT NULL,
		rent_charge_id VARCHAR(36) NOT NULL,
		lease_id VARCHAR(36) NOT NULL,
		unit_id VARCHAR(36) NOT NULL,
		property_id VARCHAR(36) NOT NULL,
		company_id VARCHAR(36) NOT NULL,
		tenant_id VARCHAR(36),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS incomes (
		id VARCHAR(36) PRIMARY KEY,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		payment_day VARCHAR(10) NOT NULL,
		description TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		amount NUMERIC(12,2) NOT NULL,
		gateway_ref_num VARCHAR(64) NOT NULL DEFAULT '',
		gateway_status VARCHAR(64) NOT NULL DEFAULT '',
		added_by VARCHAR(36) NOT NULL,
		lease_id VARCHAR(36) NOT NULL,
		unit_id VARCHAR(36) NOT NULL,
		property_id VARCHAR(36) NOT NULL,
		company_id VARCHAR(36) NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id VARCHAR(36) PRIMARY KEY,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		payment_day VARCHAR(10) NOT NULL,
		description TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		amount NUMERIC(12,2) NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		added_by VARCHAR(36) NOT NULL,
		approved_by VARCHAR(36),
		property_id VARCHAR(36),
		unit_id VARCHAR(36),
		company_id VARCHAR(36) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS income_ledgers (
		income_id VARCHAR(36) NOT NULL REFERENCES incomes(id) ON DELETE CASCADE,
		ledger_entry_id VARCHAR(36) NOT NULL,
		applied_amount NUMERIC(12,2) NOT NULL,
		PRIMARY KEY (income_id, ledger_entry_id)
	)`,
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_leases_unit_status ON leases(unit_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_leases_status_end ON leases(status, lease_end)",
	"CREATE INDEX IF NOT EXISTS idx_rent_charges_lease ON rent_charges(lease_id)",
	"CREATE INDEX IF NOT EXISTS idx_ledger_entries_lease_paid_day ON ledger_entries(lease_id, is_paid, payment_day)",
	"CREATE INDEX IF NOT EXISTS idx_ledger_entries_paid_day ON ledger_entries(is_paid, payment_day)",
	"CREATE INDEX IF NOT EXISTS idx_incomes_lease ON incomes(lease_id)",
	"CREATE INDEX IF NOT EXISTS idx_prospects_unit ON prospects(unit_id)",
	"CREATE INDEX IF NOT EXISTS idx_expenses_company_period ON expenses(company_id, year, month)",
}

// CreateTables creates the necessary tables and indexes in the database
func CreateTables(db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
