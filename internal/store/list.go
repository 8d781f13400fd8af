package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Customer is one customer record as read back for export. Nullable
// columns come through as pgtype.Text with Valid=false.
type Customer struct {
	ID        int64
	Name      string
	Email     pgtype.Text
	Phone     pgtype.Text
	Address   pgtype.Text
	Place     pgtype.Text
	State     pgtype.Text
	District  pgtype.Text
	Town      pgtype.Text
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is one product record as read back for export. Price and
// SellingPrice are selected as text to keep NUMERIC values exact.
type Product struct {
	ID            int64
	Name          string
	SKU           string
	Price         string
	SellingPrice  pgtype.Text
	StockQuantity int32
	InitialStock  pgtype.Int4
	SupplierID    pgtype.Int8
	Category      pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Supplier is one supplier record as read back for export.
type Supplier struct {
	ID          int64
	Name        string
	ContactInfo pgtype.Text
	Address     pgtype.Text
	Email       pgtype.Text
	Comments    pgtype.Text
	State       pgtype.Text
	District    pgtype.Text
	Town        pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Store) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, address, place, state, district, town, created_at, updated_at
		FROM customers
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address,
			&c.Place, &c.State, &c.District, &c.Town, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, sku, price::text, selling_price::text,
			stock_quantity, initial_stock, supplier_id, category, created_at, updated_at
		FROM products
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.SellingPrice,
			&p.StockQuantity, &p.InitialStock, &p.SupplierID, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, contact_info, address, email, comments, state, district, town, created_at, updated_at
		FROM suppliers
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var sp Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.ContactInfo, &sp.Address, &sp.Email,
			&sp.Comments, &sp.State, &sp.District, &sp.Town, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return out, nil
}
