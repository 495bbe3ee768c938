package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zjrosen/provchain/internal/history"
)

// runColumns is the list of columns to select for run queries.
const runColumns = `id, mode, source, valid, documents, error_count, warning_count, started_at, duration_us, report`

// runRepository implements history.Repository using SQLite.
type runRepository struct {
	db *sql.DB
}

func newRunRepository(db *sql.DB) *runRepository {
	return &runRepository{db: db}
}

// Ensure runRepository implements history.Repository.
var _ history.Repository = (*runRepository)(nil)

func scanRun(scanner interface{ Scan(...any) error }) (*RunModel, error) {
	var m RunModel
	err := scanner.Scan(
		&m.ID, &m.Mode, &m.Source, &m.Valid,
		&m.Documents, &m.ErrorCount, &m.WarningCount,
		&m.StartedAt, &m.DurationUS, &m.Report,
	)
	return &m, err
}

// Save inserts a run.
func (r *runRepository) Save(ctx context.Context, run *history.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	m := toRunModel(run)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Mode, m.Source, m.Valid,
		m.Documents, m.ErrorCount, m.WarningCount,
		m.StartedAt, m.DurationUS, m.Report,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FindByID returns the run whose id equals or uniquely starts with id.
func (r *runRepository) FindByID(ctx context.Context, id string) (*history.Run, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", history.ErrRunNotFound)
	}

	// Escape LIKE wildcards so the prefix is matched literally
	prefix := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(id)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, prefix+"%", id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	defer rows.Close()

	var found []*RunModel
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", history.ErrRunNotFound, id)
	case found[0].ID == id, len(found) == 1:
		return found[0].toDomain(), nil
	default:
		return nil, fmt.Errorf("%w: %s", history.ErrAmbiguousID, id)
	}
}

// List returns runs newest first.
func (r *runRepository) List(ctx context.Context, limit int) ([]*history.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*history.Run{}
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, m.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
