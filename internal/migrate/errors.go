package migrate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyFile is returned by Decode when the input has no non-blank lines.
var ErrEmptyFile = errors.New("file has no data")

// ErrRunInFlight is returned by Controller.Start while a scan or import is
// still running.
var ErrRunInFlight = errors.New("a migration run is already in progress")

// ErrNothingToRetry is returned by Controller.Retry when no failed run is
// held.
var ErrNothingToRetry = errors.New("no failed migration to retry")

// MissingColumnsError reports required columns absent from the CSV header.
type MissingColumnsError struct {
	Kind    EntityKind
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns for %s: %s", e.Kind, strings.Join(e.Columns, ", "))
}

// ScanError wraps a failed store call during the scan phase. Batch is the
// zero-based index of the batch that failed; earlier batches remain
// accumulated in the checkpoint.
type ScanError struct {
	Batch int
	Err   error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan batch %d: %v", e.Batch, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// ImportError wraps a failed store call during the import phase.
type ImportError struct {
	Batch int
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import batch %d: %v", e.Batch, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// InvalidTransitionError reports an operator action that is not legal in
// the controller's current phase.
type InvalidTransitionError struct {
	Action string
	Phase  Phase
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Action, e.Phase)
}
