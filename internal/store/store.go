// Package store implements the record store on PostgreSQL: duplicate
// scanning and chunked imports for customers, products, and suppliers,
// plus the list queries behind CSV export.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmalhotra/shopdesk/internal/migrate"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store runs all queries against a shared connection pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ScanDuplicates checks each row of the batch against the existing
// records. RowIndex is local to the batch; the caller rewrites it to a
// file-global position.
func (s *Store) ScanDuplicates(ctx context.Context, kind migrate.EntityKind, rows []migrate.Row) (migrate.BatchScanResult, error) {
	var res migrate.BatchScanResult
	for i, row := range rows {
		dup, err := isDuplicate(ctx, s.pool, kind, row)
		if err != nil {
			return migrate.BatchScanResult{}, err
		}
		if dup {
			res.DuplicateCount++
			res.Duplicates = append(res.Duplicates, migrate.DuplicateItem{
				RowIndex:    i,
				DisplayName: row.Field("name"),
				Identifier:  identifier(kind, row),
			})
		} else {
			res.NewCount++
		}
	}
	return res, nil
}

// ImportChunk commits one batch of rows in a single transaction.
// Duplicates are skipped without an error entry (Processed counts them,
// Succeeded does not). A row that fails validation or insert is recorded
// as a "row N" message and the chunk continues; each insert runs under a
// savepoint so one bad row cannot poison the transaction. Only a
// transport-level failure aborts the chunk.
func (s *Store) ImportChunk(ctx context.Context, kind migrate.EntityKind, rows []migrate.Row) (migrate.BatchCommitResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return migrate.BatchCommitResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var res migrate.BatchCommitResult
	for i, row := range rows {
		res.Processed++

		// Checking inside the transaction also catches duplicates
		// earlier in the same chunk.
		dup, err := isDuplicate(ctx, tx, kind, row)
		if err != nil {
			return migrate.BatchCommitResult{}, err
		}
		if dup {
			continue
		}

		ins, err := buildInsert(kind, row)
		if err != nil {
			res.ErrorMessages = append(res.ErrorMessages, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}

		sp := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
			return migrate.BatchCommitResult{}, fmt.Errorf("create savepoint: %w", err)
		}

		var id int64
		if err := tx.QueryRow(ctx, ins.sql, ins.args...).Scan(&id); err != nil {
			_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp)
			res.ErrorMessages = append(res.ErrorMessages, fmt.Sprintf("row %d: insert: %v", i+1, err))
			continue
		}
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT "+sp)

		res.Succeeded++
		res.AddedItems = append(res.AddedItems, migrate.InsertedItem{
			AssignedID:  id,
			DisplayName: ins.displayName,
			Identifier:  ins.identifier,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return migrate.BatchCommitResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// identifier picks the column shown next to a record's name in duplicate
// lists and import reports.
func identifier(kind migrate.EntityKind, row migrate.Row) string {
	switch kind {
	case migrate.KindInventory:
		return row.Field("sku")
	case migrate.KindSupplier:
		return row.Field("contact_info")
	default:
		return row.Field("phone")
	}
}

// isDuplicate applies the per-kind identity rule: customers match on
// phone or case-insensitive name, products on exact SKU, suppliers on
// case-insensitive name.
func isDuplicate(ctx context.Context, db DBTX, kind migrate.EntityKind, row migrate.Row) (bool, error) {
	switch kind {
	case migrate.KindCustomer:
		if phone := strings.TrimSpace(row.Field("phone")); phone != "" {
			dup, err := exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM customers WHERE phone = $1)", phone)
			if err != nil || dup {
				return dup, err
			}
		}
		if name := strings.TrimSpace(row.Field("name")); name != "" {
			return exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM customers WHERE lower(name) = lower($1))", name)
		}
		return false, nil

	case migrate.KindInventory:
		if sku := strings.TrimSpace(row.Field("sku")); sku != "" {
			return exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1)", sku)
		}
		return false, nil

	case migrate.KindSupplier:
		if name := strings.TrimSpace(row.Field("name")); name != "" {
			return exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM suppliers WHERE lower(name) = lower($1))", name)
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown entity kind: %s", kind)
	}
}

func exists(ctx context.Context, db DBTX, query string, args ...any) (bool, error) {
	var found bool
	if err := db.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return found, nil
}

// insertStatement is a fully built row insert plus the fields echoed
// back in the import report.
type insertStatement struct {
	sql         string
	args        []any
	displayName string
	identifier  string
}

// buildInsert validates a row and builds its insert statement. All
// parsing happens here, before any SQL runs, so a malformed value is a
// plain row error and never touches the transaction.
func buildInsert(kind migrate.EntityKind, row migrate.Row) (insertStatement, error) {
	switch kind {
	case migrate.KindCustomer:
		return buildCustomerInsert(row)
	case migrate.KindInventory:
		return buildProductInsert(row)
	case migrate.KindSupplier:
		return buildSupplierInsert(row)
	default:
		return insertStatement{}, fmt.Errorf("unknown entity kind: %s", kind)
	}
}

func buildCustomerInsert(row migrate.Row) (insertStatement, error) {
	name := strings.TrimSpace(row.Field("name"))
	phone := strings.TrimSpace(row.Field("phone"))
	if name == "" {
		return insertStatement{}, fmt.Errorf("name is required")
	}
	if phone == "" {
		return insertStatement{}, fmt.Errorf("phone is required")
	}

	return insertStatement{
		sql: `INSERT INTO customers (name, email, phone, address, place, state, district, town)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
		args: []any{
			name,
			toPgText(row.Field("email")),
			phone,
			toPgText(row.Field("address")),
			toPgText(row.Field("place")),
			toPgText(row.Field("state")),
			toPgText(row.Field("district")),
			toPgText(row.Field("town")),
		},
		displayName: name,
		identifier:  phone,
	}, nil
}

func buildProductInsert(row migrate.Row) (insertStatement, error) {
	name := strings.TrimSpace(row.Field("name"))
	sku := strings.TrimSpace(row.Field("sku"))
	if name == "" {
		return insertStatement{}, fmt.Errorf("name is required")
	}
	if sku == "" {
		return insertStatement{}, fmt.Errorf("sku is required")
	}

	price, err := parseNumeric("price", row.Field("price"))
	if err != nil {
		return insertStatement{}, err
	}
	sellingPrice, err := parseNumeric("selling_price", row.Field("selling_price"))
	if err != nil {
		return insertStatement{}, err
	}
	initialStock, err := parseInt("initial_stock", row.Field("initial_stock"))
	if err != nil {
		return insertStatement{}, err
	}
	stockQuantity, err := parseInt("stock_quantity", row.Field("stock_quantity"))
	if err != nil {
		return insertStatement{}, err
	}

	return insertStatement{
		sql: `INSERT INTO products (name, sku, price, selling_price, stock_quantity, initial_stock, supplier_id, category)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
		args: []any{
			name,
			sku,
			price,
			sellingPrice,
			stockQuantity,
			initialStock,
			toPgInt8(row.Field("supplier_id")),
			toPgText(row.Field("category")),
		},
		displayName: name,
		identifier:  sku,
	}, nil
}

func buildSupplierInsert(row migrate.Row) (insertStatement, error) {
	name := strings.TrimSpace(row.Field("name"))
	contact := strings.TrimSpace(row.Field("contact_info"))
	if name == "" {
		return insertStatement{}, fmt.Errorf("name is required")
	}
	if contact == "" {
		return insertStatement{}, fmt.Errorf("contact_info is required")
	}

	return insertStatement{
		sql: `INSERT INTO suppliers (name, contact_info, address, email, comments, state, district, town)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
		args: []any{
			name,
			contact,
			toPgText(row.Field("address")),
			toPgText(row.Field("email")),
			toPgText(row.Field("comments")),
			toPgText(row.Field("state")),
			toPgText(row.Field("district")),
			toPgText(row.Field("town")),
		},
		displayName: name,
		identifier:  contact,
	}, nil
}
