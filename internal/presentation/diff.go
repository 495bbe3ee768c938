package presentation

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	appprov "github.com/zjrosen/provchain/internal/application/provenance"
)

// DiffOp marks a line of a report diff.
type DiffOp string

const (
	DiffSame    DiffOp = "same"
	DiffAdded   DiffOp = "added"
	DiffRemoved DiffOp = "removed"
)

// DiffLine is one finding line of a report diff.
type DiffLine struct {
	Op   DiffOp `json:"op"`
	Text string `json:"text"`
}

// ReportDiff compares the findings of two reports.
type ReportDiff struct {
	From    string     `json:"from"`
	To      string     `json:"to"`
	Added   int        `json:"added"`
	Removed int        `json:"removed"`
	Lines   []DiffLine `json:"lines"`
}

// FindingLines renders every error and warning of a report as one stable line each.
func FindingLines(r appprov.Report) []string {
	lines := make([]string, 0, len(r.Result.Errors)+len(r.Result.Warnings))
	for _, e := range r.Result.Errors {
		lines = append(lines, fmt.Sprintf("error %s %s %s %s -> %s %s",
			e.Type, e.SourceSchema, e.SourceID, e.Field, e.TargetSchema, e.TargetID))
	}
	for _, w := range r.Result.Warnings {
		lines = append(lines, fmt.Sprintf("warning %s %s", w.Type, w.Message))
	}
	return lines
}

// DiffReports line-diffs the findings of two reports.
func DiffReports(fromID string, from appprov.Report, toID string, to appprov.Report) ReportDiff {
	a := joinLines(FindingLines(from))
	b := joinLines(FindingLines(to))

	dmp := diffmatchpatch.New()
	charsA, charsB, lineArray := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(charsA, charsB, false), lineArray)

	out := ReportDiff{From: fromID, To: toID, Lines: []DiffLine{}}
	for _, d := range diffs {
		op := DiffSame
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = DiffAdded
		case diffmatchpatch.DiffDelete:
			op = DiffRemoved
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			line = strings.TrimSuffix(line, "\n")
			if line == "" {
				continue
			}
			out.Lines = append(out.Lines, DiffLine{Op: op, Text: line})
			switch op {
			case DiffAdded:
				out.Added++
			case DiffRemoved:
				out.Removed++
			}
		}
	}
	return out
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
