package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	appprov "github.com/zjrosen/provchain/internal/application/provenance"
	"github.com/zjrosen/provchain/internal/history"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	format string
	styles styles
}

// NewFormatter creates a new formatter. An unknown format falls back to JSON.
func NewFormatter(writer io.Writer, format string, noColor bool) *Formatter {
	if format != FormatText {
		format = FormatJSON
	}
	return &Formatter{
		writer: writer,
		format: format,
		styles: newStyles(writer, noColor),
	}
}

// FormatReport writes a validation report.
func (f *Formatter) FormatReport(r appprov.Report) error {
	dto := FromReport(r)
	if f.format == FormatJSON {
		return f.encode(dto)
	}

	var b strings.Builder
	status := f.styles.valid.Render("✓ valid")
	if !dto.Valid {
		status = f.styles.invalid.Render("✗ invalid")
	}
	fmt.Fprintf(&b, "%s  %s %s\n", status, dto.Mode, dto.Source)
	b.WriteString(f.styles.muted.Render(fmt.Sprintf(
		"%d envelopes, %d plans, %d receipts in %.1fms",
		dto.Documents.Envelopes, dto.Documents.Plans, dto.Documents.Receipts, dto.DurationMs)))
	b.WriteString("\n")
	if dto.RunID != "" {
		b.WriteString(f.styles.muted.Render("run " + dto.RunID))
		b.WriteString("\n")
	}

	for _, e := range dto.Errors {
		fmt.Fprintf(&b, "%s %s %s → %s %s (%s)\n",
			f.styles.invalid.Render("✗ "+string(e.Type)),
			e.SourceSchema, e.SourceID, e.TargetSchema, e.TargetID, e.Field)
		fmt.Fprintf(&b, "    %s\n", e.Message)
	}
	for _, w := range dto.Warnings {
		fmt.Fprintf(&b, "%s %s\n", f.styles.warning.Render("! "+string(w.Type)), w.Message)
	}

	_, err := io.WriteString(f.writer, b.String())
	return err
}

// FormatStructural writes files rejected by structural validation.
func (f *Formatter) FormatStructural(errs appprov.StructuralErrors) error {
	dto := FromStructuralErrors(errs)
	if f.format == FormatJSON {
		return f.encode(dto)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %d structural errors\n", f.styles.invalid.Render("✗ invalid"), len(dto.StructuralErrors))
	for _, se := range dto.StructuralErrors {
		fmt.Fprintf(&b, "%s: %s\n", f.styles.header.Render(se.Path), se.Reason)
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

// FormatRuns writes a history listing.
func (f *Formatter) FormatRuns(runs []*history.Run) error {
	dtos := FromRuns(runs)
	if f.format == FormatJSON {
		return f.encode(dtos)
	}

	if len(dtos) == 0 {
		_, err := fmt.Fprintln(f.writer, f.styles.muted.Render("no runs recorded"))
		return err
	}

	var b strings.Builder
	b.WriteString(f.styles.header.Render(fmt.Sprintf("%-8s  %-11s  %-7s  %6s  %6s  %-20s  %s",
		"ID", "MODE", "RESULT", "ERRORS", "WARN", "STARTED", "SOURCE")))
	b.WriteString("\n")
	for i, d := range dtos {
		result := f.styles.valid.Render(fmt.Sprintf("%-7s", "valid"))
		if !d.Valid {
			result = f.styles.invalid.Render(fmt.Sprintf("%-7s", "invalid"))
		}
		fmt.Fprintf(&b, "%-8s  %-11s  %s  %6d  %6d  %-20s  %s\n",
			runs[i].ShortID(), d.Mode, result, d.ErrorCount, d.WarningCount, d.StartedAt, d.Source)
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

// FormatRun writes the stored report of a single run.
func (f *Formatter) FormatRun(run *history.Run) error {
	report, err := ReportFromRun(run)
	if err != nil {
		return err
	}
	report.RunID = run.ID
	return f.FormatReport(report)
}

// FormatDiff writes the finding diff between two runs.
func (f *Formatter) FormatDiff(d ReportDiff) error {
	if f.format == FormatJSON {
		return f.encode(d)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", f.styles.header.Render(fmt.Sprintf("%s → %s  +%d -%d", d.From, d.To, d.Added, d.Removed)))
	for _, line := range d.Lines {
		switch line.Op {
		case DiffAdded:
			b.WriteString(f.styles.added.Render("+ " + line.Text))
		case DiffRemoved:
			b.WriteString(f.styles.removed.Render("- " + line.Text))
		default:
			b.WriteString(f.styles.muted.Render("  " + line.Text))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
