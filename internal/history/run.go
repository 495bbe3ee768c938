// Package history defines recorded validation runs and the repository that persists them.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository errors.
var (
	ErrRunNotFound = errors.New("run not found")
	ErrAmbiguousID = errors.New("run id prefix matches more than one run")
)

// Run modes.
const (
	ModeBatch       = "batch"
	ModeIncremental = "incremental"
	ModeInspect     = "inspect"
)

// Run is the summary of one validation run plus its full JSON report.
type Run struct {
	ID           string
	Mode         string
	Source       string
	Valid        bool
	Documents    int
	ErrorCount   int
	WarningCount int
	StartedAt    time.Time
	Duration     time.Duration
	Report       []byte
}

// NewRun creates a run with a fresh identifier.
func NewRun(mode, source string, startedAt time.Time) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Source:    source,
		StartedAt: startedAt,
	}
}

// ShortID returns the first eight characters of the run id.
func (r *Run) ShortID() string {
	if len(r.ID) <= 8 {
		return r.ID
	}
	return r.ID[:8]
}

// Validate checks that the run can be persisted.
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("run id %q: %w", r.ID, err)
	}
	switch r.Mode {
	case ModeBatch, ModeIncremental, ModeInspect:
	default:
		return fmt.Errorf("run mode %q is not one of %s, %s, %s", r.Mode, ModeBatch, ModeIncremental, ModeInspect)
	}
	return nil
}

// Repository persists validation runs.
type Repository interface {
	// Save inserts a run. Runs are immutable once saved.
	Save(ctx context.Context, run *Run) error

	// FindByID returns the run whose id equals or uniquely starts with id.
	// Returns ErrRunNotFound or ErrAmbiguousID.
	FindByID(ctx context.Context, id string) (*Run, error)

	// List returns up to limit runs, newest first. A limit <= 0 returns all runs.
	List(ctx context.Context, limit int) ([]*Run, error)
}
