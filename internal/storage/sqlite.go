package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labelreader/labelreader/pkg/types"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when the underlying database cannot be
	// opened or accessed.
	ErrUnavailable = errors.New("storage unavailable")
)

// SQLite implements Store backed by an embedded SQLite database.
type SQLite struct {
	db *sql.DB
}

// New opens or creates the database at dbPath and applies pending
// migrations. Pass ":memory:" for an ephemeral store.
func New(dbPath string) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating database directory: %v", ErrUnavailable, err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enabling WAL mode: %v", ErrUnavailable, err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enabling foreign keys: %v", ErrUnavailable, err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: applying migrations: %v", ErrUnavailable, err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ReplaceProducts atomically clears and repopulates the product collection.
// Duplicate codes within the batch resolve last-write-wins.
func (s *SQLite) ReplaceProducts(ctx context.Context, products []types.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace products: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO products (code, description, unit_price, category, secondary_code, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare product insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for i := range products {
		p := &products[i]
		if _, err := stmt.ExecContext(ctx, p.Code, p.Description, p.UnitPrice, p.Category, p.SecondaryCode, now); err != nil {
			return fmt.Errorf("insert product %s: %w", p.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace products: %w", err)
	}
	return nil
}

// ReplaceSecondaryCodes atomically clears and repopulates the alias
// collection. Same contract as ReplaceProducts, separate transaction.
func (s *SQLite) ReplaceSecondaryCodes(ctx context.Context, codes []types.SecondaryCode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace secondary codes: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM secondary_codes`); err != nil {
		return fmt.Errorf("clear secondary codes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO secondary_codes (secondary_code, primary_code, description, updated_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare secondary code insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for i := range codes {
		c := &codes[i]
		if _, err := stmt.ExecContext(ctx, c.SecondaryCode, c.PrimaryCode, c.Description, now); err != nil {
			return fmt.Errorf("insert secondary code %s: %w", c.SecondaryCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace secondary codes: %w", err)
	}
	return nil
}

// GetProduct returns the product with the given primary code.
func (s *SQLite) GetProduct(ctx context.Context, code string) (*types.Product, error) {
	query := `
		SELECT code, description, unit_price, category, secondary_code
		FROM products
		WHERE code = ?
	`
	var p types.Product
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&p.Code, &p.Description, &p.UnitPrice, &p.Category, &p.SecondaryCode,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", code, err)
	}
	return &p, nil
}

// GetSecondaryCode returns the alias row with the given secondary code.
func (s *SQLite) GetSecondaryCode(ctx context.Context, code string) (*types.SecondaryCode, error) {
	query := `
		SELECT secondary_code, primary_code, description
		FROM secondary_codes
		WHERE secondary_code = ?
	`
	var c types.SecondaryCode
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&c.SecondaryCode, &c.PrimaryCode, &c.Description,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get secondary code %s: %w", code, err)
	}
	return &c, nil
}

// ProductsBySecondaryCode returns every product whose inline secondary code
// equals code, in primary-code order. Served by the secondary_code index.
func (s *SQLite) ProductsBySecondaryCode(ctx context.Context, code string) ([]types.Product, error) {
	query := `
		SELECT code, description, unit_price, category, secondary_code
		FROM products
		WHERE secondary_code = ?
		ORDER BY code
	`
	rows, err := s.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("products by secondary code %s: %w", code, err)
	}
	return scanProductRows(rows)
}

// ScanProducts returns every product in primary-code order.
func (s *SQLite) ScanProducts(ctx context.Context) ([]types.Product, error) {
	query := `
		SELECT code, description, unit_price, category, secondary_code
		FROM products
		ORDER BY code
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return scanProductRows(rows)
}

func scanProductRows(rows *sql.Rows) ([]types.Product, error) {
	defer func() { _ = rows.Close() }()

	products := make([]types.Product, 0)
	for rows.Next() {
		var p types.Product
		if err := rows.Scan(&p.Code, &p.Description, &p.UnitPrice, &p.Category, &p.SecondaryCode); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ScanSecondaryCodes returns every alias row in secondary-code order.
func (s *SQLite) ScanSecondaryCodes(ctx context.Context) ([]types.SecondaryCode, error) {
	query := `
		SELECT secondary_code, primary_code, description
		FROM secondary_codes
		ORDER BY secondary_code
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scan secondary codes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	codes := make([]types.SecondaryCode, 0)
	for rows.Next() {
		var c types.SecondaryCode
		if err := rows.Scan(&c.SecondaryCode, &c.PrimaryCode, &c.Description); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// CountProducts returns the number of products in the mirror.
func (s *SQLite) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// CountSecondaryCodes returns the number of alias rows in the mirror.
func (s *SQLite) CountSecondaryCodes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secondary_codes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count secondary codes: %w", err)
	}
	return n, nil
}

// GetConfig returns the value stored under key, or ErrNotFound.
func (s *SQLite) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

// SetConfig upserts a single configuration key.
func (s *SQLite) SetConfig(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// ClearAll wipes products, aliases and configuration in one transaction.
func (s *SQLite) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"products", "secondary_codes", "config"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}
