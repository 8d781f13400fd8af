package migrate

import "context"

// DefaultImportBatchSize is the number of rows committed per store call
// when no size is configured.
const DefaultImportBatchSize = 50

// ImportProgressFunc is invoked after every committed batch.
type ImportProgressFunc func(processed, total int)

// ImportOptions carries the operator's duplicate decision into the
// executor.
type ImportOptions struct {
	// SkipDuplicates filters rows flagged by the scan out of the
	// submitted set before batching. When false every row is submitted
	// and the store applies its own duplicate policy.
	SkipDuplicates bool

	// Duplicates is the scan phase's duplicate list. It supplies both
	// the filter (when SkipDuplicates is set) and the report's Skipped
	// figure.
	Duplicates []DuplicateItem
}

// ImportCheckpoint buffers the import's accumulation as batches commit,
// mirroring ScanCheckpoint. NextOffset indexes into the submitted (post-
// filter) row set.
type ImportCheckpoint struct {
	NextOffset int
	Stats      ImportStats
}

// Executor drives rows through the store's commit operation in fixed-size
// batches and aggregates per-batch outcomes into a final report.
type Executor struct {
	store     Store
	batchSize int
}

// NewExecutor returns an Executor. batchSize <= 0 selects the default.
func NewExecutor(store Store, batchSize int) *Executor {
	if batchSize <= 0 {
		batchSize = DefaultImportBatchSize
	}
	return &Executor{store: store, batchSize: batchSize}
}

// Import commits rows batch by batch, starting from cp.NextOffset. A
// single row's business-rule failure never aborts the run: the store
// reports it inside the batch result and the loop continues. A failed
// store call aborts with an *ImportError, leaving the accumulated state
// in cp for resumption.
//
// Stats.Skipped is set from the scan's duplicate count, not recomputed
// from the import batches; see ImportStats for the field semantics.
func (e *Executor) Import(ctx context.Context, kind EntityKind, rows []Row, opts ImportOptions, cp *ImportCheckpoint, onProgress ImportProgressFunc) (ImportStats, error) {
	if cp == nil {
		cp = &ImportCheckpoint{}
	}

	submit := rows
	if opts.SkipDuplicates && len(opts.Duplicates) > 0 {
		dup := make(map[int]bool, len(opts.Duplicates))
		for _, d := range opts.Duplicates {
			dup[d.RowIndex] = true
		}
		submit = make([]Row, 0, len(rows))
		for i, row := range rows {
			if !dup[i] {
				submit = append(submit, row)
			}
		}
	}

	total := len(submit)
	for offset := cp.NextOffset; offset < total; offset += e.batchSize {
		end := offset + e.batchSize
		if end > total {
			end = total
		}

		batch, err := e.store.ImportChunk(ctx, kind, submit[offset:end])
		if err != nil {
			return ImportStats{}, &ImportError{Batch: offset / e.batchSize, Err: err}
		}

		cp.Stats.Total += batch.Processed
		cp.Stats.New += batch.Succeeded
		cp.Stats.Errors += len(batch.ErrorMessages)
		cp.Stats.ErrorDetails = append(cp.Stats.ErrorDetails, batch.ErrorMessages...)
		cp.Stats.AddedItems = append(cp.Stats.AddedItems, batch.AddedItems...)
		cp.NextOffset = end

		if onProgress != nil {
			onProgress(cp.Stats.Total, total)
		}
	}

	cp.Stats.Skipped = len(opts.Duplicates)
	return cp.Stats, nil
}
