// Package migrate implements the scan-then-import pipeline for bulk-loading
// business records from CSV files into the record store.
//
// This package has no UI or transport dependencies. It can be driven by web
// handlers, CLI tools, or tests without modification.
//
// # Pipeline
//
// A migration run moves through four stages:
//
//  1. Decode: [Decode] turns raw CSV text into headers and rows, and
//     [ValidateHeaders] checks the entity's required columns before any
//     store work happens.
//  2. Scan: [Scanner.Scan] drives all rows through the store's duplicate
//     check in fixed-size batches and assembles a single [ScanResult] with
//     global row indices.
//  3. Decide: the operator inspects the scan summary (and optionally the
//     duplicate list) and confirms or cancels.
//  4. Import: [Executor.Import] commits all rows in fixed-size batches with
//     per-row failure isolation and produces a final [ImportStats] report.
//
// The [Controller] owns the phase state machine tying these together and
// publishes live progress to subscribers.
//
// # Failure recovery
//
// Scanner and Executor record each completed batch into a checkpoint, so a
// transient store failure on batch k can be retried from batch k via
// [Controller.Retry] instead of discarding all prior batches.
package migrate
