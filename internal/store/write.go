package store

import (
	"context"
	"fmt"

	"github.com/roach88/modelcore/internal/ir"
)

// WriteApplication inserts an application record and its problems in one
// transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a duplicate ID leaves the
// stored record and its problems untouched.
//
// The snapshot is serialized to canonical JSON per RFC 8785.
func (s *Store) WriteApplication(ctx context.Context, app ir.Application) error {
	snapshotJSON, err := marshalSnapshot(app.Snapshot)
	if err != nil {
		return fmt.Errorf("write application: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write application: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO applications
		(id, seq, project, plugin_type, software_type, outcome, message, snapshot, snapshot_hash, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		app.ID,
		app.Seq,
		app.Project,
		app.PluginType,
		app.SoftwareType,
		app.Outcome,
		app.Message,
		snapshotJSON,
		app.SnapshotHash,
		app.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("write application: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write application: rows affected: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for i, text := range app.Problems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO problems (application_id, ordinal, text)
			VALUES (?, ?, ?)
		`, app.ID, i, text); err != nil {
			return fmt.Errorf("write application: problem %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write application: commit: %w", err)
	}
	return nil
}

// marshalSnapshot converts a snapshot to canonical JSON TEXT for storage.
func marshalSnapshot(snapshot ir.Object) (string, error) {
	if snapshot == nil {
		snapshot = ir.Object{}
	}
	data, err := ir.MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}
