package migrate

import "context"

// DefaultScanBatchSize is the number of rows sent to the store per
// duplicate-check call when no size is configured.
const DefaultScanBatchSize = 100

// ScanProgressFunc is invoked after every completed batch.
type ScanProgressFunc func(scanned, total, duplicatesFound int)

// ScanCheckpoint buffers the scan's accumulation as batches complete, so
// a transport failure on batch k can be retried from batch k instead of
// discarding earlier batches. NextOffset is the row offset the next batch
// starts at.
type ScanCheckpoint struct {
	NextOffset int
	Result     ScanResult
}

// Scanner drives decoded rows through the store's duplicate check in
// fixed-size batches and reassembles a single global ScanResult.
type Scanner struct {
	store     Store
	batchSize int
}

// NewScanner returns a Scanner. batchSize <= 0 selects the default.
func NewScanner(store Store, batchSize int) *Scanner {
	if batchSize <= 0 {
		batchSize = DefaultScanBatchSize
	}
	return &Scanner{store: store, batchSize: batchSize}
}

// Scan checks every row against the store, batch by batch, starting from
// cp.NextOffset. Batch-local duplicate indices are rewritten to global row
// indices. onProgress (optional) fires after each batch.
//
// On a store failure the accumulated state stays in cp and a *ScanError
// is returned; calling Scan again with the same checkpoint resumes at the
// failed batch. The returned result always satisfies
// DuplicateCount + NewCount == TotalRows.
func (s *Scanner) Scan(ctx context.Context, kind EntityKind, rows []Row, cp *ScanCheckpoint, onProgress ScanProgressFunc) (ScanResult, error) {
	if cp == nil {
		cp = &ScanCheckpoint{}
	}

	total := len(rows)
	for offset := cp.NextOffset; offset < total; offset += s.batchSize {
		end := offset + s.batchSize
		if end > total {
			end = total
		}

		batch, err := s.store.ScanDuplicates(ctx, kind, rows[offset:end])
		if err != nil {
			return ScanResult{}, &ScanError{Batch: offset / s.batchSize, Err: err}
		}

		cp.Result.DuplicateCount += batch.DuplicateCount
		cp.Result.NewCount += batch.NewCount
		for _, d := range batch.Duplicates {
			d.RowIndex += offset // batch-local -> global
			cp.Result.Duplicates = append(cp.Result.Duplicates, d)
		}
		cp.NextOffset = end

		if onProgress != nil {
			onProgress(end, total, len(cp.Result.Duplicates))
		}
	}

	// TotalRows counts rows that reached the scanner, after the decoder's
	// drop policy, not the raw line count of the file.
	cp.Result.TotalRows = total
	return cp.Result, nil
}
