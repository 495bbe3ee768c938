package sqlite

import (
	"time"

	"github.com/zjrosen/provchain/internal/history"
)

// RunModel is the database row for the runs table.
// Times are stored as Unix microseconds.
type RunModel struct {
	ID           string
	Mode         string
	Source       string
	Valid        bool
	Documents    int
	ErrorCount   int
	WarningCount int
	StartedAt    int64
	DurationUS   int64
	Report       []byte
}

func toRunModel(r *history.Run) *RunModel {
	return &RunModel{
		ID:           r.ID,
		Mode:         r.Mode,
		Source:       r.Source,
		Valid:        r.Valid,
		Documents:    r.Documents,
		ErrorCount:   r.ErrorCount,
		WarningCount: r.WarningCount,
		StartedAt:    r.StartedAt.UnixMicro(),
		DurationUS:   r.Duration.Microseconds(),
		Report:       r.Report,
	}
}

func (m *RunModel) toDomain() *history.Run {
	return &history.Run{
		ID:           m.ID,
		Mode:         m.Mode,
		Source:       m.Source,
		Valid:        m.Valid,
		Documents:    m.Documents,
		ErrorCount:   m.ErrorCount,
		WarningCount: m.WarningCount,
		StartedAt:    time.UnixMicro(m.StartedAt),
		Duration:     time.Duration(m.DurationUS) * time.Microsecond,
		Report:       m.Report,
	}
}
