package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/rentledger-server/internal/models"
)

// Store is the entry point to persistence. All lifecycle writes go through
// WithTx so that a failure at any step leaves no partial state behind.
type Store interface {
	// WithTx runs fn inside a transaction. It commits when fn returns nil and
	// rolls back otherwise; fn's error is returned unchanged.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// Notices exposes the read-only projections used by notification sweeps.
	Notices() NoticeRepository
}

// Tx gives access to every entity repository bound to one transaction
type Tx interface {
	Companies() CompanyRepository
	Users() UserRepository
	Properties() PropertyRepository
	Units() UnitRepository
	Prospects() ProspectRepository
	Leases() LeaseRepository
	RentCharges() RentChargeRepository
	Ledgers() LedgerRepository
	Incomes() IncomeRepository
	Expenses() ExpenseRepository
}

// SQLStore implements Store on top of sqlx. It works with the PostgreSQL and
// SQLite drivers; queries are written with ? placeholders and rebound.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a new store around an open connection
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// GetDB returns the underlying database connection
func (s *SQLStore) GetDB() *sqlx.DB {
	return s.db
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{q: queryer{ext: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Notices() NoticeRepository {
	return &noticeRepo{q: queryer{ext: s.db}}
}

type sqlTx struct {
	q queryer
}

func (t *sqlTx) Companies() CompanyRepository     { return &companyRepo{q: t.q} }
func (t *sqlTx) Users() UserRepository             { return &userRepo{q: t.q} }
func (t *sqlTx) Properties() PropertyRepository    { return &propertyRepo{q: t.q} }
func (t *sqlTx) Units() UnitRepository             { return &unitRepo{q: t.q} }
func (t *sqlTx) Prospects() ProspectRepository     { return &prospectRepo{q: t.q} }
func (t *sqlTx) Leases() LeaseRepository           { return &leaseRepo{q: t.q} }
func (t *sqlTx) RentCharges() RentChargeRepository { return &rentChargeRepo{q: t.q} }
func (t *sqlTx) Ledgers() LedgerRepository         { return &ledgerRepo{q: t.q} }
func (t *sqlTx) Incomes() IncomeRepository         { return &incomeRepo{q: t.q} }
func (t *sqlTx) Expenses() ExpenseRepository       { return &expenseRepo{q: t.q} }

// queryer rebinds ? placeholders for the active driver
type queryer struct {
	ext sqlx.ExtContext
}

func (q queryer) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q queryer) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

// selectIn expands slice arguments into IN lists before selecting
func (q queryer) selectIn(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	expanded, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return q.selectAll(ctx, dest, expanded, inArgs...)
}

func (q queryer) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execOne runs a write that must touch exactly one row
func (q queryer) execOne(ctx context.Context, what, query string, args ...interface{}) error {
	n, err := q.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s affected %d rows", models.ErrConsistency, what, n)
	}
	return nil
}

// exists reports whether the count query returns a positive number
func (q queryer) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var n int
	if err := q.get(ctx, &n, query, args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// notFound converts sql.ErrNoRows into models.ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrNotFound, what)
	}
	return err
}
