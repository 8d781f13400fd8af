package migrate

// messages.go maps technical errors to user-facing messages with codes
// the operator can quote to support staff.
//
// Codes by category:
//
//	FILE001 - empty file (no non-blank lines)
//	VAL001  - required columns missing from the header
//	SCAN001 - a duplicate-scan batch call failed
//	IMP001  - an import batch call failed
//	RUN001  - a migration run is already in progress
//	RUN002  - the requested action is not legal in the current phase
//	RUN003  - nothing to retry
//	DB001   - database unreachable
//	ERR000  - fallback

import (
	"errors"
	"strings"
)

// UserMessage is a user-friendly rendering of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// MapError converts an error into a UserMessage. Typed pipeline errors
// are matched first; remaining errors fall back to case-insensitive
// substring matching on the message text.
func MapError(err error) UserMessage {
	var missing *MissingColumnsError
	var scanErr *ScanError
	var importErr *ImportError
	var transition *InvalidTransitionError

	switch {
	case errors.Is(err, ErrEmptyFile):
		return UserMessage{
			Message: "The uploaded file has no data rows",
			Action:  "Upload a CSV file with a header line and at least one record",
			Code:    "FILE001",
		}
	case errors.As(err, &missing):
		return UserMessage{
			Message: "Required columns are missing: " + strings.Join(missing.Columns, ", "),
			Action:  "Add the missing columns to the CSV header and upload again",
			Code:    "VAL001",
		}
	case errors.As(err, &scanErr):
		return UserMessage{
			Message: "Duplicate scanning failed partway through",
			Action:  "The completed batches are kept; use retry to continue",
			Code:    "SCAN001",
		}
	case errors.As(err, &importErr):
		return UserMessage{
			Message: "Importing failed partway through",
			Action:  "The committed batches are kept; use retry to continue",
			Code:    "IMP001",
		}
	case errors.Is(err, ErrRunInFlight):
		return UserMessage{
			Message: "A migration is already running",
			Action:  "Wait for it to finish before starting another",
			Code:    "RUN001",
		}
	case errors.As(err, &transition):
		return UserMessage{
			Message: err.Error(),
			Code:    "RUN002",
		}
	case errors.Is(err, ErrNothingToRetry):
		return UserMessage{
			Message: "There is no failed migration to retry",
			Code:    "RUN003",
		}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"):
		return UserMessage{
			Message: "Unable to reach the database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		}
	case strings.Contains(lower, "unknown entity kind"):
		return UserMessage{
			Message: err.Error(),
			Action:  "Use one of: customer, inventory, supplier",
			Code:    "VAL002",
		}
	}

	return UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support",
		Code:    "ERR000",
	}
}
