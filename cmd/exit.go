package cmd

import (
	"fmt"

	appprov "github.com/zjrosen/provchain/internal/application/provenance"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitInvalid = 2
)

// ExitError carries a process exit code out of a command.
// A nil Err means the report has already been written and nothing else should be printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitForReport returns ExitInvalid when the report holds reference errors.
func exitForReport(report appprov.Report) error {
	if report.Result.Valid {
		return nil
	}
	return &ExitError{Code: ExitInvalid}
}
