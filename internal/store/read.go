package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/lookahead/internal/harness"
	"github.com/roach88/lookahead/internal/sink"
)

// ErrRunNotFound is returned by ReadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is the summary row of a stored run.
type Run struct {
	ID       string   `json:"id"`
	Seq      int64    `json:"seq"`
	Scenario string   `json:"scenario"`
	Kind     string   `json:"kind"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors"`
}

// ListRuns returns stored runs ordered by seq. An empty scenario lists all.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, scenario, kind, pass, errors
		FROM runs
		WHERE ? = '' OR scenario = ?
		ORDER BY seq ASC
	`, scenario, scenario)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a run and its trace.
// Returns ErrRunNotFound if no run has the id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, *harness.Trace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, scenario, kind, pass, errors
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, nil, err
	}

	trace := &harness.Trace{Scenario: run.Scenario}
	if trace.Renders, err = s.readRenders(ctx, id); err != nil {
		return Run{}, nil, err
	}
	if trace.Firings, err = s.readFirings(ctx, id); err != nil {
		return Run{}, nil, err
	}
	if trace.OpErrors, err = s.readOpErrors(ctx, id); err != nil {
		return Run{}, nil, err
	}
	return run, trace, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var errorsJSON string
	if err := row.Scan(&run.ID, &run.Seq, &run.Scenario, &run.Kind, &run.Pass, &errorsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return Run{}, fmt.Errorf("unmarshal run errors: %w", err)
	}
	return run, nil
}

func (s *Store) readRenders(ctx context.Context, id string) ([]harness.RenderTrace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, timeline
		FROM renders
		WHERE run_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query renders: %w", err)
	}

	renders := []harness.RenderTrace{}
	for rows.Next() {
		r := harness.RenderTrace{Instructions: []sink.Instruction{}}
		if err := rows.Scan(&r.Label, &r.Timeline); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan render: %w", err)
		}
		renders = append(renders, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate renders: %w", err)
	}

	// one connection: the render rows must be closed before the next query
	for i := range renders {
		if renders[i].Instructions, err = s.readInstructions(ctx, id, renders[i].Label); err != nil {
			return nil, err
		}
	}
	return renders, nil
}

func (s *Store) readInstructions(ctx context.Context, id, render string) ([]sink.Instruction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op, value, time
		FROM instructions
		WHERE run_id = ? AND render = ?
		ORDER BY seq ASC
	`, id, render)
	if err != nil {
		return nil, fmt.Errorf("query instructions: %w", err)
	}
	defer rows.Close()

	instructions := []sink.Instruction{}
	for rows.Next() {
		var in sink.Instruction
		var op string
		if err := rows.Scan(&op, &in.Value, &in.Time); err != nil {
			return nil, fmt.Errorf("scan instruction: %w", err)
		}
		in.Op = sink.Op(op)
		instructions = append(instructions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instructions: %w", err)
	}
	return instructions, nil
}

func (s *Store) readFirings(ctx context.Context, id string) ([]harness.Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, scheduled, at, realtime
		FROM firings
		WHERE run_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []harness.Firing{}
	for rows.Next() {
		var f harness.Firing
		if err := rows.Scan(&f.Seq, &f.Name, &f.Scheduled, &f.At, &f.Realtime); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

func (s *Store) readOpErrors(ctx context.Context, id string) ([]harness.OpError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timeline, op_index, op, code, message
		FROM op_errors
		WHERE run_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query op errors: %w", err)
	}
	defer rows.Close()

	var opErrors []harness.OpError
	for rows.Next() {
		var oe harness.OpError
		if err := rows.Scan(&oe.Timeline, &oe.Index, &oe.Op, &oe.Code, &oe.Message); err != nil {
			return nil, fmt.Errorf("scan op error: %w", err)
		}
		opErrors = append(opErrors, oe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate op errors: %w", err)
	}
	return opErrors, nil
}

// DeleteRun removes a run and everything it owns.
// Deleting an unknown id is not an error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
