package presentation

import (
	"encoding/json"
	"fmt"
	"time"

	appprov "github.com/zjrosen/provchain/internal/application/provenance"
	"github.com/zjrosen/provchain/internal/domain/provenance"
	"github.com/zjrosen/provchain/internal/history"
)

// ReportDTO represents a validation report for presentation
type ReportDTO struct {
	RunID      string                        `json:"run_id,omitempty"`
	Mode       string                        `json:"mode"`
	Source     string                        `json:"source"`
	Valid      bool                          `json:"valid"`
	Documents  appprov.DocumentCounts        `json:"documents"`
	Errors     []provenance.ReferenceError   `json:"errors"`
	Warnings   []provenance.ReferenceWarning `json:"warnings"`
	StartedAt  string                        `json:"started_at"`
	DurationMs float64                       `json:"duration_ms"`
}

// FromReport converts a service report to a DTO
func FromReport(r appprov.Report) ReportDTO {
	errs := r.Result.Errors
	if errs == nil {
		errs = []provenance.ReferenceError{}
	}
	warnings := r.Result.Warnings
	if warnings == nil {
		warnings = []provenance.ReferenceWarning{}
	}

	return ReportDTO{
		RunID:      r.RunID,
		Mode:       r.Mode,
		Source:     r.Source,
		Valid:      r.Result.Valid,
		Documents:  r.Documents,
		Errors:     errs,
		Warnings:   warnings,
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		DurationMs: durationMs(r.Duration),
	}
}

// StructuralDTO reports files rejected before reference validation
type StructuralDTO struct {
	Valid            bool                       `json:"valid"`
	StructuralErrors []*appprov.StructuralError `json:"structural_errors"`
}

// FromStructuralErrors converts structural defects to a DTO
func FromStructuralErrors(errs appprov.StructuralErrors) StructuralDTO {
	list := []*appprov.StructuralError(errs)
	if list == nil {
		list = []*appprov.StructuralError{}
	}
	return StructuralDTO{StructuralErrors: list}
}

// RunDTO represents a recorded run in history listings
type RunDTO struct {
	ID           string  `json:"id"`
	Mode         string  `json:"mode"`
	Source       string  `json:"source"`
	Valid        bool    `json:"valid"`
	Documents    int     `json:"documents"`
	ErrorCount   int     `json:"errors"`
	WarningCount int     `json:"warnings"`
	StartedAt    string  `json:"started_at"`
	DurationMs   float64 `json:"duration_ms"`
}

// FromRun converts a history run to a DTO
func FromRun(run *history.Run) RunDTO {
	return RunDTO{
		ID:           run.ID,
		Mode:         run.Mode,
		Source:       run.Source,
		Valid:        run.Valid,
		Documents:    run.Documents,
		ErrorCount:   run.ErrorCount,
		WarningCount: run.WarningCount,
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
		DurationMs:   durationMs(run.Duration),
	}
}

// FromRuns converts a slice of runs to DTOs
func FromRuns(runs []*history.Run) []RunDTO {
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = FromRun(run)
	}
	return dtos
}

// ReportFromRun decodes the report stored with a run.
func ReportFromRun(run *history.Run) (appprov.Report, error) {
	var report appprov.Report
	if len(run.Report) == 0 {
		return report, fmt.Errorf("run %s has no stored report", run.ShortID())
	}
	if err := json.Unmarshal(run.Report, &report); err != nil {
		return report, fmt.Errorf("decode report of run %s: %w", run.ShortID(), err)
	}
	return report, nil
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
