package provenance

import (
	"time"

	"github.com/zjrosen/provchain/internal/domain/provenance"
)

// DocumentCounts is the number of documents of each kind a run saw.
type DocumentCounts struct {
	Envelopes int `json:"envelopes"`
	Plans     int `json:"plans"`
	Receipts  int `json:"receipts"`
}

// Total returns the number of documents across kinds.
func (c DocumentCounts) Total() int {
	return c.Envelopes + c.Plans + c.Receipts
}

func countDocuments(set provenance.DocumentSet) DocumentCounts {
	return DocumentCounts{
		Envelopes: len(set.Envelopes),
		Plans:     len(set.Plans),
		Receipts:  len(set.Receipts),
	}
}

// Report is the outcome of one validation run.
type Report struct {
	RunID     string            `json:"run_id,omitempty"`
	Mode      string            `json:"mode"`
	Source    string            `json:"source"`
	Documents DocumentCounts    `json:"documents"`
	Result    provenance.Result `json:"result"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration_ns"`
}

// Outcome returns "valid" or "invalid".
func (r Report) Outcome() string {
	if r.Result.Valid {
		return "valid"
	}
	return "invalid"
}
