package migrate

import "context"

// Row is a single decoded CSV data row: column name (as found in the
// header) mapped to its string value. Rows are immutable once decoded.
type Row map[string]string

// Get returns the value for a column, matching the name with the same
// normalization used for header validation (case, underscores, and
// spaces are ignored).
func (r Row) Get(col string) (string, bool) {
	if v, ok := r[col]; ok {
		return v, true
	}
	want := NormalizeColumn(col)
	for k, v := range r {
		if NormalizeColumn(k) == want {
			return v, true
		}
	}
	return "", false
}

// Field returns the value for a column, or "" when absent.
func (r Row) Field(col string) string {
	v, _ := r.Get(col)
	return v
}

// DuplicateItem identifies a row whose identity matches an existing store
// record. RowIndex is zero-based; the store reports it relative to the
// batch it received, the scanner rewrites it to be global.
type DuplicateItem struct {
	RowIndex    int    `json:"row_index"`
	DisplayName string `json:"display_name"`
	Identifier  string `json:"identifier,omitempty"`
}

// ScanResult is the reassembled outcome of scanning every row.
// Invariant: DuplicateCount + NewCount == TotalRows.
type ScanResult struct {
	TotalRows      int             `json:"total_rows"`
	DuplicateCount int             `json:"duplicate_count"`
	NewCount       int             `json:"new_count"`
	Duplicates     []DuplicateItem `json:"duplicates"`
}

// BatchScanResult is the store's answer for one scanned batch.
// Duplicate row indices are relative to the batch.
type BatchScanResult struct {
	DuplicateCount int             `json:"duplicate_count"`
	NewCount       int             `json:"new_count"`
	Duplicates     []DuplicateItem `json:"duplicates"`
}

// InsertedItem describes a record the store created during import.
type InsertedItem struct {
	AssignedID  int64  `json:"assigned_id"`
	DisplayName string `json:"display_name"`
	Identifier  string `json:"identifier,omitempty"`
}

// BatchCommitResult is the store's answer for one imported batch.
type BatchCommitResult struct {
	Processed     int            `json:"processed_count"`
	Succeeded     int            `json:"success_count"`
	ErrorMessages []string       `json:"error_messages"`
	AddedItems    []InsertedItem `json:"added_items"`
}

// ImportStats is the final reconciled import report.
//
// Total, New, and Errors are import-phase facts: rows submitted to the
// store, rows it inserted, and rows it rejected. Skipped is NOT derived
// from the import batches - it is the scan-phase duplicate count, the
// "rows you were warned about" figure. New + Skipped + Errors therefore
// only reconciles with the scanned row count when duplicates were
// filtered out before batching.
type ImportStats struct {
	Total        int            `json:"total"`
	New          int            `json:"new"`
	Skipped      int            `json:"skipped"`
	Errors       int            `json:"errors"`
	ErrorDetails []string       `json:"error_details"`
	AddedItems   []InsertedItem `json:"added_items"`
}

// Store is the record store the pipeline depends on. Both operations
// receive one batch at a time; implementations decide identity rules and
// insert semantics.
type Store interface {
	// ScanDuplicates checks each row in the batch against existing
	// records. Returned duplicate indices are relative to the batch.
	ScanDuplicates(ctx context.Context, kind EntityKind, rows []Row) (BatchScanResult, error)

	// ImportChunk commits the batch. Row-level business failures are
	// reported inside the result, not as an error; an error means the
	// whole batch call failed.
	ImportChunk(ctx context.Context, kind EntityKind, rows []Row) (BatchCommitResult, error)
}
