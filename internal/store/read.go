package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/modelcore/internal/ir"
)

// Filter narrows ReadApplications. Zero fields match everything.
type Filter struct {
	Project      string
	PluginType   string
	SoftwareType string
	Outcome      string
	AfterSeq     int64 // only records with seq > AfterSeq
	Limit        int
}

// ReadApplications returns application records matching f.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no records match.
func (s *Store) ReadApplications(ctx context.Context, f Filter) ([]ir.Application, error) {
	var (
		where []string
		args  []any
	)
	if f.Project != "" {
		where = append(where, "project = ?")
		args = append(args, f.Project)
	}
	if f.PluginType != "" {
		where = append(where, "plugin_type = ?")
		args = append(args, f.PluginType)
	}
	if f.SoftwareType != "" {
		where = append(where, "software_type = ?")
		args = append(args, f.SoftwareType)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := `
		SELECT id, seq, project, plugin_type, software_type, outcome, message, snapshot, snapshot_hash, engine_version
		FROM applications`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY seq ASC, id COLLATE BINARY ASC"
	if f.Limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}

	apps := []ir.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	rows.Close()

	// The pool holds a single connection, so problems are read only after
	// the application rows are closed.
	for i := range apps {
		problems, err := s.readProblems(ctx, apps[i].ID)
		if err != nil {
			return nil, err
		}
		apps[i].Problems = problems
	}
	return apps, nil
}

// ReadApplication retrieves a single application by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadApplication(ctx context.Context, id string) (ir.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, project, plugin_type, software_type, outcome, message, snapshot, snapshot_hash, engine_version
		FROM applications
		WHERE id = ?
	`, id)

	app, err := scanApplication(row)
	if err != nil {
		return ir.Application{}, err
	}
	app.Problems, err = s.readProblems(ctx, id)
	if err != nil {
		return ir.Application{}, err
	}
	return app, nil
}

// NextSeq returns the next unused logical clock value, starting at 1.
func (s *Store) NextSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM applications`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

func (s *Store) readProblems(ctx context.Context, appID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT text FROM problems
		WHERE application_id = ?
		ORDER BY ordinal ASC
	`, appID)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	defer rows.Close()

	problems := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		problems = append(problems, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate problems: %w", err)
	}
	return problems, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (ir.Application, error) {
	var (
		app          ir.Application
		snapshotJSON string
	)
	err := row.Scan(
		&app.ID,
		&app.Seq,
		&app.Project,
		&app.PluginType,
		&app.SoftwareType,
		&app.Outcome,
		&app.Message,
		&snapshotJSON,
		&app.SnapshotHash,
		&app.EngineVersion,
	)
	if err == sql.ErrNoRows {
		return ir.Application{}, err
	}
	if err != nil {
		return ir.Application{}, fmt.Errorf("scan application: %w", err)
	}

	app.Snapshot, err = unmarshalSnapshot(snapshotJSON)
	if err != nil {
		return ir.Application{}, err
	}
	return app, nil
}

// unmarshalSnapshot parses canonical JSON TEXT to an Object.
// ir.Object.UnmarshalJSON keeps large integers exact via json.Number.
func unmarshalSnapshot(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return obj, nil
}
