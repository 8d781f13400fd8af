package migrate

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Decode turns raw CSV text into a header list and the ordered data rows.
//
// The format handled here is the deliberately narrow one produced by the
// back-office exports this tool ingests:
//
//   - lines split on \r?\n, blank lines discarded
//   - first non-blank line is the header
//   - a comma separates fields only when an even number of quote
//     characters precede it on the line
//   - every cell is trimmed and stripped of surrounding double quotes
//
// A data line whose cell count does not match the header is dropped
// silently: it neither errors nor consumes a row index. Returns
// ErrEmptyFile when no non-blank lines exist.
func Decode(raw string) ([]string, []Row, error) {
	lines := splitLines(sanitizeText(raw))
	if len(lines) == 0 {
		return nil, nil, ErrEmptyFile
	}

	headers := splitFields(lines[0])
	for i, h := range headers {
		headers[i] = cleanCell(h)
	}

	var rows []Row
	for _, line := range lines[1:] {
		cells := splitFields(line)
		if len(cells) != len(headers) {
			continue // malformed line, dropped by policy
		}
		row := make(Row, len(headers))
		for i, cell := range cells {
			row[headers[i]] = cleanCell(cell)
		}
		rows = append(rows, row)
	}

	return headers, rows, nil
}

// ValidateHeaders checks that every required column for the entity kind
// has a normalized match in the decoded headers. It runs once, before any
// batch work, so a structurally invalid file never reaches the scanner.
func ValidateHeaders(def EntityDefinition, headers []string) error {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[NormalizeColumn(h)] = true
	}

	var missing []string
	for _, col := range def.RequiredColumns {
		if !present[NormalizeColumn(col)] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Kind: def.Kind, Columns: missing}
	}
	return nil
}

// NormalizeColumn lowercases a column name and strips underscores and
// spaces, so "Contact Info" and "contact_info" compare equal.
func NormalizeColumn(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r == '_' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitLines breaks the input on \r?\n and discards blank lines.
func splitLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitFields splits a line on commas that are outside quoted fields: a
// comma counts as a separator only when an even number of quote
// characters precede it.
func splitFields(line string) []string {
	var fields []string
	var b strings.Builder
	quotes := 0

	for _, r := range line {
		switch {
		case r == '"':
			quotes++
			b.WriteRune(r)
		case r == ',' && quotes%2 == 0:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	fields = append(fields, b.String())
	return fields
}

// cleanCell trims whitespace and strips one pair of surrounding double
// quotes. Excel's ="value" formula prefix is unwrapped the same way.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// sanitizeText strips a UTF-8 BOM and replaces invalid UTF-8 sequences
// with the replacement character. Windows exports routinely carry both.
func sanitizeText(raw string) string {
	raw = strings.TrimPrefix(raw, "\uFEFF")
	if utf8.ValidString(raw) {
		return raw
	}

	var buf bytes.Buffer
	buf.Grow(len(raw))
	data := []byte(raw)
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.Write(data[:size])
			data = data[size:]
		}
	}
	return buf.String()
}
