package store

// convert.go turns cleaned CSV cells into PostgreSQL parameter values.
//
// Optional columns map empty input to NULL via pgtype values with
// Valid=false. Mandatory numeric columns go through the error-returning
// parsers instead, so a malformed number surfaces as a row error rather
// than a silent NULL.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericPattern validates a numeric string after cleanup. Integers and
// plain decimals; exponent notation is rejected.
var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// toPgText maps empty or whitespace-only input to NULL.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// cleanNumber strips currency symbols, thousands separators, and the
// accounting negative format "(123.45)".
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "£", "")
	s = strings.ReplaceAll(s, "₹", "") // Rupee
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}
	return s
}

// parseNumeric parses a mandatory numeric column.
func parseNumeric(field, s string) (pgtype.Numeric, error) {
	s = cleanNumber(s)
	if s == "" || !numericPattern.MatchString(s) {
		return pgtype.Numeric{}, fmt.Errorf("invalid or missing %s", field)
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("invalid or missing %s", field)
	}
	return n, nil
}

// parseInt parses a mandatory integer column.
func parseInt(field, s string) (int32, error) {
	s = cleanNumber(s)
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid or missing %s", field)
	}
	return int32(v), nil
}

// toPgInt8 parses an optional integer column; empty or unparseable input
// maps to NULL.
func toPgInt8(s string) pgtype.Int8 {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Int8{Valid: false}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: v, Valid: true}
}
