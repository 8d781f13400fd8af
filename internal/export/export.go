// Package export renders store records as CSV downloads, one encoder
// per entity kind. Timestamps are printed in IST to match what the
// operators see in the rest of the tooling.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nmalhotra/shopdesk/internal/store"
)

// ist is UTC+05:30.
var ist = time.FixedZone("IST", 5*3600+30*60)

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.In(ist).Format(timeLayout)
}

func text(v pgtype.Text) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func int4(v pgtype.Int4) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(int64(v.Int32), 10)
}

func int8(v pgtype.Int8) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

// Customers writes a header row plus one line per customer.
func Customers(w io.Writer, customers []store.Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"id", "name", "email", "phone", "address", "place",
		"state", "district", "town", "created_at", "updated_at",
	}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, c := range customers {
		record := []string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			text(c.Email),
			text(c.Phone),
			text(c.Address),
			text(c.Place),
			text(c.State),
			text(c.District),
			text(c.Town),
			formatTime(c.CreatedAt),
			formatTime(c.UpdatedAt),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write customer %d: %w", c.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Products writes a header row plus one line per product.
func Products(w io.Writer, products []store.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"id", "name", "sku", "price", "selling_price", "stock_quantity",
		"initial_stock", "supplier_id", "category", "created_at", "updated_at",
	}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, p := range products {
		record := []string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			p.SKU,
			p.Price,
			text(p.SellingPrice),
			strconv.FormatInt(int64(p.StockQuantity), 10),
			int4(p.InitialStock),
			int8(p.SupplierID),
			text(p.Category),
			formatTime(p.CreatedAt),
			formatTime(p.UpdatedAt),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write product %d: %w", p.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Suppliers writes a header row plus one line per supplier.
func Suppliers(w io.Writer, suppliers []store.Supplier) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"id", "name", "contact_info", "address", "email", "comments",
		"state", "district", "town", "created_at", "updated_at",
	}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, sp := range suppliers {
		record := []string{
			strconv.FormatInt(sp.ID, 10),
			sp.Name,
			text(sp.ContactInfo),
			text(sp.Address),
			text(sp.Email),
			text(sp.Comments),
			text(sp.State),
			text(sp.District),
			text(sp.Town),
			formatTime(sp.CreatedAt),
			formatTime(sp.UpdatedAt),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write supplier %d: %w", sp.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
