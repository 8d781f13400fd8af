package export

import (
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nmalhotra/shopdesk/internal/store"
)

func TestCustomers(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	customers := []store.Customer{
		{
			ID:        1,
			Name:      "Alice",
			Email:     pgtype.Text{String: "alice@example.com", Valid: true},
			Phone:     pgtype.Text{String: "9990001111", Valid: true},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:        2,
			Name:      "Acme, Inc",
			CreatedAt: created,
			UpdatedAt: created,
		},
	}

	var b strings.Builder
	if err := Customers(&b, customers); err != nil {
		t.Fatalf("Customers() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3 (header + 2 rows)\n%s", len(lines), b.String())
	}
	if lines[0] != "id,name,email,phone,address,place,state,district,town,created_at,updated_at" {
		t.Errorf("header = %q", lines[0])
	}
	// 09:30 UTC is 15:00 IST.
	if !strings.Contains(lines[1], "2025-03-14 15:00:00") {
		t.Errorf("timestamp not converted to IST: %q", lines[1])
	}
	if !strings.HasPrefix(lines[1], "1,Alice,alice@example.com,9990001111,") {
		t.Errorf("row 1 = %q", lines[1])
	}
	// Name with a comma must be quoted; NULL columns render empty.
	if !strings.HasPrefix(lines[2], `2,"Acme, Inc",,,`) {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestProducts(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []store.Product{
		{
			ID:            7,
			Name:          "Widget",
			SKU:           "W-100",
			Price:         "40.00",
			SellingPrice:  pgtype.Text{String: "55.00", Valid: true},
			StockQuantity: 12,
			InitialStock:  pgtype.Int4{Int32: 10, Valid: true},
			SupplierID:    pgtype.Int8{Int64: 3, Valid: true},
			CreatedAt:     created,
			UpdatedAt:     created,
		},
	}

	var b strings.Builder
	if err := Products(&b, products); err != nil {
		t.Fatalf("Products() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2\n%s", len(lines), b.String())
	}
	if !strings.HasPrefix(lines[1], "7,Widget,W-100,40.00,55.00,12,10,3,") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestSuppliers_EmptyList(t *testing.T) {
	var b strings.Builder
	if err := Suppliers(&b, nil); err != nil {
		t.Fatalf("Suppliers() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("empty export lines = %d, want header only", len(lines))
	}
}
