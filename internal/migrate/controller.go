package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is one state of the migration state machine.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseScanning          Phase = "scanning"
	PhaseScanComplete      Phase = "scan_complete"
	PhaseViewingDuplicates Phase = "viewing_duplicates"
	PhaseImporting         Phase = "importing"
	PhaseComplete          Phase = "complete"
)

// DefaultRunTimeout bounds one background scan or import phase.
const DefaultRunTimeout = 10 * time.Minute

// Progress is published to subscribers after every batch and on every
// phase change.
type Progress struct {
	RunID           string     `json:"run_id"`
	Kind            EntityKind `json:"entity_kind"`
	FileName        string     `json:"file_name"`
	Phase           Phase      `json:"phase"`
	RowsScanned     int        `json:"rows_scanned"`
	RowsImported    int        `json:"rows_imported"`
	TotalRows       int        `json:"total_rows"`
	DuplicatesFound int        `json:"duplicates_found"`
	Error           string     `json:"error,omitempty"`
}

// Snapshot is the controller's externally visible state: the current
// phase plus only the data valid in that phase.
type Snapshot struct {
	RunID    string       `json:"run_id,omitempty"`
	Kind     EntityKind   `json:"entity_kind,omitempty"`
	FileName string       `json:"file_name,omitempty"`
	Phase    Phase        `json:"phase"`
	Scan     *ScanResult  `json:"scan,omitempty"`
	Report   *ImportStats `json:"report,omitempty"`
	Error    string       `json:"error,omitempty"`
	CanRetry bool         `json:"can_retry,omitempty"`
}

// Config tunes the controller's batch sizes and run timeout.
type Config struct {
	ScanBatchSize   int
	ImportBatchSize int
	RunTimeout      time.Duration
}

// Controller owns one migration run at a time: the decoded rows, the
// phase state machine, the scan and import accumulators, and the
// progress listeners. All state is discarded on reset.
type Controller struct {
	scanner    *Scanner
	executor   *Executor
	runTimeout time.Duration

	mu        sync.Mutex
	phase     Phase
	runID     string
	def       EntityDefinition
	fileName  string
	rows      []Row
	scanCP    *ScanCheckpoint
	importCP  *ImportCheckpoint
	scan      *ScanResult
	report    *ImportStats
	skipDups  bool
	failed    Phase // phase that hit a transport error, for Retry
	lastErr   string
	progress  Progress
	listeners []chan Progress
	cancel    context.CancelFunc
	inflight  chan struct{}
}

// NewController builds a controller over the given store.
func NewController(store Store, cfg Config) *Controller {
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Controller{
		scanner:    NewScanner(store, cfg.ScanBatchSize),
		executor:   NewExecutor(store, cfg.ImportBatchSize),
		runTimeout: timeout,
		phase:      PhaseIdle,
		progress:   Progress{Phase: PhaseIdle},
	}
}

// Start decodes and validates an uploaded file and begins the scan phase
// in the background. Returns the run ID immediately; subscribe for
// progress. Decode and header errors surface here, before any batch
// work, and leave the controller idle.
//
// Starting is refused while a scan or import is in flight; from any
// settled phase the previous run's state is discarded first.
func (c *Controller) Start(kind EntityKind, fileName, raw string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseScanning || c.phase == PhaseImporting {
		return "", ErrRunInFlight
	}

	def, ok := Lookup(kind)
	if !ok {
		return "", fmt.Errorf("unknown entity kind: %s", kind)
	}

	c.resetLocked()

	headers, rows, err := Decode(raw)
	if err != nil {
		c.lastErr = err.Error()
		return "", err
	}
	if err := ValidateHeaders(def, headers); err != nil {
		c.lastErr = err.Error()
		return "", err
	}

	c.runID = uuid.New().String()
	c.def = def
	c.fileName = fileName
	c.rows = rows
	c.scanCP = &ScanCheckpoint{}
	c.phase = PhaseScanning
	c.progress = Progress{
		RunID:     c.runID,
		Kind:      kind,
		FileName:  fileName,
		Phase:     PhaseScanning,
		TotalRows: len(rows),
	}
	c.notifyLocked()

	c.spawnLocked(c.runScan)
	return c.runID, nil
}

// runScan executes the scan phase against the checkpoint. On a store
// failure the machine returns to idle with the error message but keeps
// the rows and checkpoint so Retry can resume from the failed batch.
func (c *Controller) runScan(ctx context.Context) {
	c.mu.Lock()
	kind, rows, cp := c.def.Kind, c.rows, c.scanCP
	c.mu.Unlock()

	result, err := c.scanner.Scan(ctx, kind, rows, cp, func(scanned, total, dups int) {
		c.mu.Lock()
		c.progress.RowsScanned = scanned
		c.progress.TotalRows = total
		c.progress.DuplicatesFound = dups
		c.notifyLocked()
		c.mu.Unlock()
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		slog.Error("scan failed", "run_id", c.runID, "entity", kind, "error", err)
		c.failPhaseLocked(PhaseScanning, err)
		return
	}

	c.scan = &result
	c.phase = PhaseScanComplete
	c.progress.Phase = PhaseScanComplete
	c.progress.RowsScanned = result.TotalRows
	c.progress.DuplicatesFound = result.DuplicateCount
	c.notifyLocked()
	c.closeListenersLocked()
	slog.Info("scan complete",
		"run_id", c.runID,
		"entity", kind,
		"total_rows", result.TotalRows,
		"duplicates", result.DuplicateCount,
	)
}

// Duplicates returns the scan's duplicate list and moves the machine to
// viewing_duplicates. Only legal from scan_complete when duplicates were
// found (or when already viewing).
func (c *Controller) Duplicates() ([]DuplicateItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.phase == PhaseViewingDuplicates:
		return append([]DuplicateItem(nil), c.scan.Duplicates...), nil
	case c.phase == PhaseScanComplete && c.scan.DuplicateCount > 0:
		c.phase = PhaseViewingDuplicates
		return append([]DuplicateItem(nil), c.scan.Duplicates...), nil
	default:
		return nil, &InvalidTransitionError{Action: "view duplicates", Phase: c.phase}
	}
}

// Back returns from the duplicate list to the scan summary.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseViewingDuplicates {
		return &InvalidTransitionError{Action: "go back", Phase: c.phase}
	}
	c.phase = PhaseScanComplete
	return nil
}

// ConfirmImport begins the import phase in the background. Legal from
// scan_complete and viewing_duplicates. skipDuplicates filters the rows
// the scan flagged out of the submitted set.
func (c *Controller) ConfirmImport(skipDuplicates bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseScanComplete && c.phase != PhaseViewingDuplicates {
		return &InvalidTransitionError{Action: "import", Phase: c.phase}
	}

	c.skipDups = skipDuplicates
	c.importCP = &ImportCheckpoint{}
	c.phase = PhaseImporting
	c.progress.Phase = PhaseImporting
	c.progress.RowsImported = 0
	c.notifyLocked()

	c.spawnLocked(c.runImport)
	return nil
}

func (c *Controller) runImport(ctx context.Context) {
	c.mu.Lock()
	kind, rows, cp := c.def.Kind, c.rows, c.importCP
	opts := ImportOptions{SkipDuplicates: c.skipDups, Duplicates: c.scan.Duplicates}
	c.mu.Unlock()

	stats, err := c.executor.Import(ctx, kind, rows, opts, cp, func(processed, total int) {
		c.mu.Lock()
		c.progress.RowsImported = processed
		c.progress.TotalRows = total
		c.notifyLocked()
		c.mu.Unlock()
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		slog.Error("import failed", "run_id", c.runID, "entity", kind, "error", err)
		c.failPhaseLocked(PhaseImporting, err)
		return
	}

	c.report = &stats
	c.phase = PhaseComplete
	c.progress.Phase = PhaseComplete
	c.notifyLocked()
	c.closeListenersLocked()
	slog.Info("import complete",
		"run_id", c.runID,
		"entity", kind,
		"total", stats.Total,
		"new", stats.New,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
	)
}

// Retry resumes a run whose scan or import hit a transport error,
// continuing from the first unprocessed batch.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseIdle || c.failed == "" || c.rows == nil {
		return ErrNothingToRetry
	}

	resume := c.failed
	c.failed = ""
	c.lastErr = ""
	c.phase = resume
	c.progress.Phase = resume
	c.progress.Error = ""
	c.notifyLocked()

	switch resume {
	case PhaseScanning:
		c.spawnLocked(c.runScan)
	case PhaseImporting:
		c.spawnLocked(c.runImport)
	}
	return nil
}

// Cancel discards the scan state without importing. Only legal at
// scan_complete.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseScanComplete {
		return &InvalidTransitionError{Action: "cancel", Phase: c.phase}
	}
	c.resetLocked()
	return nil
}

// Acknowledge dismisses a completed run and returns to idle.
func (c *Controller) Acknowledge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseComplete {
		return &InvalidTransitionError{Action: "acknowledge", Phase: c.phase}
	}
	c.resetLocked()
	return nil
}

// Reset discards all run state from any settled phase. An in-flight scan
// or import cannot be interrupted mid-batch and must settle first.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseScanning || c.phase == PhaseImporting {
		return ErrRunInFlight
	}
	c.resetLocked()
	return nil
}

// Snapshot reports the current phase with only the data valid in it.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		RunID:    c.runID,
		FileName: c.fileName,
		Phase:    c.phase,
		Error:    c.lastErr,
		CanRetry: c.failed != "",
	}
	if c.def.Kind != "" {
		snap.Kind = c.def.Kind
	}
	switch c.phase {
	case PhaseScanComplete, PhaseViewingDuplicates, PhaseImporting:
		snap.Scan = c.scan
	case PhaseComplete:
		snap.Scan = c.scan
		snap.Report = c.report
	}
	return snap
}

// Subscribe returns a channel receiving progress updates. The channel is
// closed when the current background phase settles. The current progress
// is delivered immediately.
func (c *Controller) Subscribe() <-chan Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Progress, 16)
	c.listeners = append(c.listeners, ch)
	select {
	case ch <- c.progress:
	default:
	}
	return ch
}

// Wait blocks until the in-flight background phase (if any) settles.
func (c *Controller) Wait() {
	c.mu.Lock()
	ch := c.inflight
	c.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

// spawnLocked launches a background phase with panic recovery. Caller
// holds the lock.
func (c *Controller) spawnLocked(run func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), c.runTimeout)
	c.cancel = cancel
	done := make(chan struct{})
	c.inflight = done

	go func() {
		defer cancel()
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in migration run", "panic", r)
				c.mu.Lock()
				c.failPhaseLocked(c.phase, fmt.Errorf("internal error: %v", r))
				c.mu.Unlock()
			}
		}()
		run(ctx)
	}()
}

// failPhaseLocked aborts the in-progress phase: back to idle with the
// error message, rows and checkpoint retained for Retry. Caller holds
// the lock.
func (c *Controller) failPhaseLocked(phase Phase, err error) {
	c.failed = phase
	c.lastErr = err.Error()
	c.phase = PhaseIdle
	c.progress.Phase = PhaseIdle
	c.progress.Error = c.lastErr
	c.notifyLocked()
	c.closeListenersLocked()
}

// resetLocked discards all run state. Caller holds the lock.
func (c *Controller) resetLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.closeListenersLocked()
	c.phase = PhaseIdle
	c.runID = ""
	c.def = EntityDefinition{}
	c.fileName = ""
	c.rows = nil
	c.scanCP = nil
	c.importCP = nil
	c.scan = nil
	c.report = nil
	c.skipDups = false
	c.failed = ""
	c.lastErr = ""
	c.progress = Progress{Phase: PhaseIdle}
	c.inflight = nil
}

// notifyLocked delivers the current progress to every listener without
// blocking. Caller holds the lock.
func (c *Controller) notifyLocked() {
	for _, ch := range c.listeners {
		select {
		case ch <- c.progress:
		default:
		}
	}
}

func (c *Controller) closeListenersLocked() {
	for _, ch := range c.listeners {
		close(ch)
	}
	c.listeners = nil
}
