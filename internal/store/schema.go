package store

import (
	"context"
	"fmt"
)

// schemaSQL creates the three record tables and the indexes backing the
// duplicate-identity lookups. Suppliers come first so the products
// foreign key resolves.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS suppliers (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	contact_info TEXT,
	address TEXT,
	email TEXT,
	comments TEXT,
	state TEXT,
	district TEXT,
	town TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_suppliers_name_lower ON suppliers (lower(name));

CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	sku TEXT NOT NULL UNIQUE,
	price NUMERIC NOT NULL,
	selling_price NUMERIC,
	stock_quantity INTEGER NOT NULL DEFAULT 0,
	initial_stock INTEGER,
	supplier_id BIGINT REFERENCES suppliers(id),
	category TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS customers (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	address TEXT,
	place TEXT,
	state TEXT,
	district TEXT,
	town TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers (phone);
CREATE INDEX IF NOT EXISTS idx_customers_name_lower ON customers (lower(name));
`

// EnsureSchema creates the tables and indexes if they do not exist.
// Safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
