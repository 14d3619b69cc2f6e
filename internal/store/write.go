package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/lookahead/internal/harness"
)

// Run kinds.
const (
	KindRender   = "render"
	KindSimulate = "simulate"
	KindTest     = "test"
)

// WriteRun stores a harness result under id in a single transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing the same id
// twice keeps the first run and its rows.
func (s *Store) WriteRun(ctx context.Context, id, kind string, result *harness.Result) error {
	if id == "" {
		return fmt.Errorf("write run: id is required")
	}

	errorsJSON, err := json.Marshal(nonNil(result.Errors))
	if err != nil {
		return fmt.Errorf("write run: marshal errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, scenario, kind, pass, errors)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, result.Trace.Scenario, kind, result.Pass, string(errorsJSON))
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write run: %w", err)
	} else if n == 0 {
		// already stored
		return nil
	}

	if err := writeTrace(ctx, tx, id, &result.Trace); err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

func writeTrace(ctx context.Context, tx *sql.Tx, id string, trace *harness.Trace) error {
	for r, render := range trace.Renders {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO renders (run_id, seq, label, timeline)
			VALUES (?, ?, ?, ?)
		`, id, r+1, render.Label, render.Timeline)
		if err != nil {
			return fmt.Errorf("insert render %s: %w", render.Label, err)
		}

		for i, in := range render.Instructions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO instructions (run_id, render, seq, op, value, time)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, render.Label, i+1, string(in.Op), in.Value, in.Time)
			if err != nil {
				return fmt.Errorf("insert instruction %s[%d]: %w", render.Label, i, err)
			}
		}
	}

	for _, f := range trace.Firings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO firings (run_id, seq, name, scheduled, at, realtime)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, f.Seq, f.Name, f.Scheduled, f.At, f.Realtime)
		if err != nil {
			return fmt.Errorf("insert firing %d: %w", f.Seq, err)
		}
	}

	for i, oe := range trace.OpErrors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO op_errors (run_id, seq, timeline, op_index, op, code, message)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, i+1, oe.Timeline, oe.Index, oe.Op, oe.Code, oe.Message)
		if err != nil {
			return fmt.Errorf("insert op error %d: %w", i, err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
