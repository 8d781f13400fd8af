package migrate

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// customerCSV renders n customer rows with the same phone scheme as
// makeRows, so fixtures seeded by phone line up.
func customerCSV(n int) string {
	var b strings.Builder
	b.WriteString("name,phone\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Person %d,9%09d\n", i, i)
	}
	return b.String()
}

func newTestController(store Store) *Controller {
	return NewController(store, Config{
		ScanBatchSize:   2,
		ImportBatchSize: 2,
		RunTimeout:      5 * time.Second,
	})
}

func TestController_HappyPath(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store)

	runID, err := ctrl.Start(KindCustomer, "customers.csv", customerCSV(5))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if runID == "" {
		t.Fatal("Start() returned empty run ID")
	}
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Phase != PhaseScanComplete {
		t.Fatalf("phase after scan = %s, want %s", snap.Phase, PhaseScanComplete)
	}
	if snap.Scan == nil || snap.Scan.TotalRows != 5 || snap.Scan.NewCount != 5 {
		t.Fatalf("scan result = %+v", snap.Scan)
	}
	if snap.Report != nil {
		t.Errorf("report visible before import: %+v", snap.Report)
	}

	if err := ctrl.ConfirmImport(false); err != nil {
		t.Fatalf("ConfirmImport() error = %v", err)
	}
	ctrl.Wait()

	snap = ctrl.Snapshot()
	if snap.Phase != PhaseComplete {
		t.Fatalf("phase after import = %s, want %s", snap.Phase, PhaseComplete)
	}
	if snap.Report == nil || snap.Report.Total != 5 || snap.Report.New != 5 {
		t.Fatalf("report = %+v", snap.Report)
	}

	if err := ctrl.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if got := ctrl.Snapshot(); got.Phase != PhaseIdle || got.RunID != "" {
		t.Errorf("snapshot after acknowledge = %+v", got)
	}
}

func TestController_DuplicateReviewFlow(t *testing.T) {
	// Phones for rows 1 and 3 already exist in the store.
	store := newFakeStore("9000000001", "9000000003")
	ctrl := newTestController(store)

	if _, err := ctrl.Start(KindCustomer, "customers.csv", customerCSV(5)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctrl.Wait()

	dups, err := ctrl.Duplicates()
	if err != nil {
		t.Fatalf("Duplicates() error = %v", err)
	}
	if len(dups) != 2 {
		t.Fatalf("duplicates = %v", dups)
	}
	if dups[0].RowIndex != 1 || dups[1].RowIndex != 3 {
		t.Errorf("duplicate indices = %d, %d, want 1, 3", dups[0].RowIndex, dups[1].RowIndex)
	}
	if got := ctrl.Snapshot().Phase; got != PhaseViewingDuplicates {
		t.Fatalf("phase = %s, want %s", got, PhaseViewingDuplicates)
	}

	if err := ctrl.Back(); err != nil {
		t.Fatalf("Back() error = %v", err)
	}
	if got := ctrl.Snapshot().Phase; got != PhaseScanComplete {
		t.Fatalf("phase after back = %s, want %s", got, PhaseScanComplete)
	}

	// Importing straight from the review screen is also allowed.
	if _, err := ctrl.Duplicates(); err != nil {
		t.Fatalf("Duplicates() error = %v", err)
	}
	if err := ctrl.ConfirmImport(true); err != nil {
		t.Fatalf("ConfirmImport() error = %v", err)
	}
	ctrl.Wait()

	if got := store.importedRows(); got != 3 {
		t.Errorf("rows submitted to store = %d, want 3 (duplicates filtered)", got)
	}
	snap := ctrl.Snapshot()
	if snap.Phase != PhaseComplete {
		t.Fatalf("phase = %s, want %s", snap.Phase, PhaseComplete)
	}
	if snap.Report.Total != 3 || snap.Report.New != 3 || snap.Report.Skipped != 2 {
		t.Errorf("report = %+v, want Total=3 New=3 Skipped=2", snap.Report)
	}
}

func TestController_DuplicatesRefusedWhenNoneFound(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store)

	if _, err := ctrl.Start(KindCustomer, "c.csv", customerCSV(3)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctrl.Wait()

	var invalid *InvalidTransitionError
	if _, err := ctrl.Duplicates(); !errors.As(err, &invalid) {
		t.Fatalf("Duplicates() error = %v, want *InvalidTransitionError", err)
	}
}

func TestController_DecodeErrorStaysIdle(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store)

	_, err := ctrl.Start(KindCustomer, "empty.csv", "")
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("Start() error = %v, want ErrEmptyFile", err)
	}
	if got := ctrl.Snapshot().Phase; got != PhaseIdle {
		t.Errorf("phase = %s, want %s", got, PhaseIdle)
	}
	if got := store.scanCalls(); got != 0 {
		t.Errorf("scan calls = %d, want 0", got)
	}
}

func TestController_MissingColumnsStaysIdle(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store)

	_, err := ctrl.Start(KindCustomer, "c.csv", "name\nAlice\n")
	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("Start() error = %v, want *MissingColumnsError", err)
	}
	if got := ctrl.Snapshot().Phase; got != PhaseIdle {
		t.Errorf("phase = %s, want %s", got, PhaseIdle)
	}
	if got := store.scanCalls(); got != 0 {
		t.Errorf("scan calls = %d, want 0", got)
	}
}

func TestController_UnknownKindRefused(t *testing.T) {
	ctrl := newTestController(newFakeStore())
	if _, err := ctrl.Start(EntityKind("vehicle"), "v.csv", "name\nx\n"); err == nil {
		t.Fatal("Start() accepted unknown entity kind")
	}
}

func TestController_StartRefusedWhileInFlight(t *testing.T) {
	store := newFakeStore()
	store.gate = make(chan struct{})
	ctrl := newTestController(store)

	if _, err := ctrl.Start(KindCustomer, "a.csv", customerCSV(4)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := ctrl.Start(KindCustomer, "b.csv", customerCSV(4)); !errors.Is(err, ErrRunInFlight) {
		t.Fatalf("second Start() error = %v, want ErrRunInFlight", err)
	}
	if err := ctrl.Reset(); !errors.Is(err, ErrRunInFlight) {
		t.Fatalf("Reset() during scan error = %v, want ErrRunInFlight", err)
	}

	close(store.gate)
	ctrl.Wait()
	if got := ctrl.Snapshot().Phase; got != PhaseScanComplete {
		t.Fatalf("phase = %s, want %s", got, PhaseScanComplete)
	}
}

func TestController_InvalidTransitions(t *testing.T) {
	ctrl := newTestController(newFakeStore())

	var invalid *InvalidTransitionError
	if err := ctrl.Back(); !errors.As(err, &invalid) {
		t.Errorf("Back() from idle error = %v", err)
	}
	if err := ctrl.ConfirmImport(false); !errors.As(err, &invalid) {
		t.Errorf("ConfirmImport() from idle error = %v", err)
	}
	if err := ctrl.Cancel(); !errors.As(err, &invalid) {
		t.Errorf("Cancel() from idle error = %v", err)
	}
	if err := ctrl.Acknowledge(); !errors.As(err, &invalid) {
		t.Errorf("Acknowledge() from idle error = %v", err)
	}
	if _, err := ctrl.Duplicates(); !errors.As(err, &invalid) {
		t.Errorf("Duplicates() from idle error = %v", err)
	}
}

func TestController_CancelDiscardsRun(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store)

	if _, err := ctrl.Start(KindCustomer, "c.csv", customerCSV(3)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctrl.Wait()

	if err := ctrl.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	snap := ctrl.Snapshot()
	if snap.Phase != PhaseIdle || snap.RunID != "" || snap.Scan != nil {
		t.Errorf("snapshot after cancel = %+v", snap)
	}
	if got := store.importCalls(); got != 0 {
		t.Errorf("import calls after cancel = %d, want 0", got)
	}
}

func TestController_RetryAfterScanFailure(t *testing.T) {
	store := newFakeStore()
	store.failScanCall = 2
	ctrl := newTestController(store)

	if _, err := ctrl.Start(KindCustomer, "c.csv", customerCSV(6)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Phase != PhaseIdle {
		t.Fatalf("phase after failure = %s, want %s", snap.Phase, PhaseIdle)
	}
	if !snap.CanRetry {
		t.Fatal("CanRetry = false after transport failure")
	}
	if snap.Error == "" {
		t.Fatal("snapshot carries no error message")
	}

	if err := ctrl.Retry(); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	ctrl.Wait()

	snap = ctrl.Snapshot()
	if snap.Phase != PhaseScanComplete {
		t.Fatalf("phase after retry = %s, want %s", snap.Phase, PhaseScanComplete)
	}
	if snap.Scan.TotalRows != 6 || snap.Scan.NewCount != 6 {
		t.Errorf("scan result after retry = %+v", snap.Scan)
	}
	// Batch 0 succeeded before the failure and is not rescanned.
	if got := store.scanCalls(); got != 4 {
		t.Errorf("scan calls = %d, want 4 (1 ok, 1 failed, 2 resumed)", got)
	}
}

func TestController_RetryAfterImportFailure(t *testing.T) {
	store := newFakeStore()
	store.failImportCall = 2
	ctrl := newTestController(store)

	if _, err := ctrl.Start(KindCustomer, "c.csv", customerCSV(6)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctrl.Wait()
	if err := ctrl.ConfirmImport(false); err != nil {
		t.Fatalf("ConfirmImport() error = %v", err)
	}
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Phase != PhaseIdle || !snap.CanRetry {
		t.Fatalf("snapshot after failure = %+v", snap)
	}

	if err := ctrl.Retry(); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	ctrl.Wait()

	snap = ctrl.Snapshot()
	if snap.Phase != PhaseComplete {
		t.Fatalf("phase after retry = %s, want %s", snap.Phase, PhaseComplete)
	}
	if snap.Report.Total != 6 || snap.Report.New != 6 {
		t.Errorf("report after retry = %+v", snap.Report)
	}
}

func TestController_RetryWithNothingPending(t *testing.T) {
	ctrl := newTestController(newFakeStore())
	if err := ctrl.Retry(); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("Retry() error = %v, want ErrNothingToRetry", err)
	}
}

func TestController_StartReplacesSettledRun(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store)

	if _, err := ctrl.Start(KindCustomer, "first.csv", customerCSV(2)); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	ctrl.Wait()
	first := ctrl.Snapshot()

	runID, err := ctrl.Start(KindCustomer, "second.csv", customerCSV(4))
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.RunID == first.RunID || snap.RunID != runID {
		t.Errorf("run ID not replaced: %s vs %s", snap.RunID, first.RunID)
	}
	if snap.FileName != "second.csv" || snap.Scan.TotalRows != 4 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestController_Subscribe(t *testing.T) {
	store := newFakeStore()
	store.gate = make(chan struct{})
	ctrl := newTestController(store)

	if _, err := ctrl.Start(KindCustomer, "c.csv", customerCSV(4)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ch := ctrl.Subscribe()
	close(store.gate)
	ctrl.Wait()

	var events []Progress
	for p := range ch {
		events = append(events, p)
	}
	if len(events) == 0 {
		t.Fatal("no progress events received")
	}
	if events[0].Phase != PhaseScanning {
		t.Errorf("first event phase = %s, want %s", events[0].Phase, PhaseScanning)
	}
	last := events[len(events)-1]
	if last.Phase != PhaseScanComplete {
		t.Errorf("last event phase = %s, want %s", last.Phase, PhaseScanComplete)
	}
	if last.RowsScanned != 4 || last.TotalRows != 4 {
		t.Errorf("last event = %+v", last)
	}
	for _, p := range events {
		if p.RunID == "" {
			t.Errorf("event missing run ID: %+v", p)
		}
	}
}
