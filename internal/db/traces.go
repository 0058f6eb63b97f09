package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/lagcomp/internal/integ"
	"github.com/banshee-data/lagcomp/internal/lagcomp"
)

// ErrTraceNotFound is returned when no trace matches a run ID.
var ErrTraceNotFound = errors.New("trace not found")

// TraceSummary is one row of the trace listing, without per-step detail.
type TraceSummary struct {
	RunID       string
	Entity      string
	Direction   lagcomp.Direction
	Begin       float64
	End         float64
	ReachedTime float64
	DtGo        float64
	Steps       int
	Passes      int
	Truncated   bool
	Err         string
	CreatedAt   time.Time
}

// InsertTrace stores a compensation record and its steps in one
// transaction.
func (db *DB) InsertTrace(rec lagcomp.TraceRecord) error {
	if rec.RunID == "" {
		return errors.New("trace has no run id")
	}
	before, err := encodeState(rec.Before)
	if err != nil {
		return fmt.Errorf("failed to encode initial state: %w", err)
	}
	after, err := encodeState(rec.After)
	if err != nil {
		return fmt.Errorf("failed to encode final state: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var errText sql.NullString
	if rec.Err != "" {
		errText = sql.NullString{String: rec.Err, Valid: true}
	}
	_, err = tx.Exec(`INSERT INTO lagcomp_traces (
		run_id, entity, direction, begin_time, end_time, reached_time, dt_go,
		steps, passes, truncated, error, before_json, after_json, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Entity, string(rec.Direction), rec.Begin, rec.End,
		finite(rec.Result.Time), finite(rec.Result.DtGo), rec.Result.Steps, rec.Result.Passes,
		rec.Result.Truncated, errText, before, after, created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trace %s: %w", rec.RunID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO lagcomp_trace_steps (
		run_id, step, sim_time, step_size, dt_go, passes
	) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range rec.Steps {
		if _, err := stmt.Exec(rec.RunID, s.Step, s.Time, s.StepSize, s.DtGo, s.Passes); err != nil {
			return fmt.Errorf("failed to insert step %d of trace %s: %w", s.Step, rec.RunID, err)
		}
	}

	return tx.Commit()
}

// InsertTraces stores each record, stopping at the first failure.
func (db *DB) InsertTraces(recs []lagcomp.TraceRecord) error {
	for _, rec := range recs {
		if err := db.InsertTrace(rec); err != nil {
			return err
		}
	}
	return nil
}

// ListTraces returns summaries oldest first. An empty entity lists every
// entity; limit <= 0 means no limit.
func (db *DB) ListTraces(entity string, limit int) ([]TraceSummary, error) {
	query := `SELECT run_id, entity, direction, begin_time, end_time, reached_time,
		dt_go, steps, passes, truncated, error, created_at
		FROM lagcomp_traces`
	var args []interface{}
	if entity != "" {
		query += " WHERE entity = ?"
		args = append(args, entity)
	}
	query += " ORDER BY created_at, rowid"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TraceSummary
	for rows.Next() {
		var (
			s       TraceSummary
			dir     string
			errText sql.NullString
			created int64
		)
		if err := rows.Scan(&s.RunID, &s.Entity, &dir, &s.Begin, &s.End, &s.ReachedTime,
			&s.DtGo, &s.Steps, &s.Passes, &s.Truncated, &errText, &created); err != nil {
			return nil, err
		}
		s.Direction = lagcomp.Direction(dir)
		s.Err = errText.String
		s.CreatedAt = time.UnixMilli(created)
		out = append(out, s)
	}
	return out, rows.Err()
}

// TraceSteps returns the steps recorded for runID in step order.
func (db *DB) TraceSteps(runID string) ([]lagcomp.TraceStep, error) {
	rows, err := db.Query(`SELECT step, sim_time, step_size, dt_go, passes
		FROM lagcomp_trace_steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lagcomp.TraceStep
	for rows.Next() {
		var s lagcomp.TraceStep
		if err := rows.Scan(&s.Step, &s.Time, &s.StepSize, &s.DtGo, &s.Passes); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTrace reassembles the full record stored for runID.
func (db *DB) GetTrace(runID string) (*lagcomp.TraceRecord, error) {
	var (
		rec           lagcomp.TraceRecord
		dir           string
		errText       sql.NullString
		before, after string
		created       int64
	)
	err := db.QueryRow(`SELECT run_id, entity, direction, begin_time, end_time,
		reached_time, dt_go, steps, passes, truncated, error, before_json, after_json, created_at
		FROM lagcomp_traces WHERE run_id = ?`, runID).Scan(
		&rec.RunID, &rec.Entity, &dir, &rec.Begin, &rec.End,
		&rec.Result.Time, &rec.Result.DtGo, &rec.Result.Steps, &rec.Result.Passes,
		&rec.Result.Truncated, &errText, &before, &after, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	rec.Direction = lagcomp.Direction(dir)
	rec.Err = errText.String
	rec.CreatedAt = time.UnixMilli(created)
	rec.Result = integ.Result{
		Begin:     rec.Begin,
		End:       rec.End,
		Time:      rec.Result.Time,
		DtGo:      rec.Result.DtGo,
		Steps:     rec.Result.Steps,
		Passes:    rec.Result.Passes,
		Truncated: rec.Result.Truncated,
	}
	if err := json.Unmarshal([]byte(before), &rec.Before); err != nil {
		return nil, fmt.Errorf("failed to decode initial state: %w", err)
	}
	if err := json.Unmarshal([]byte(after), &rec.After); err != nil {
		return nil, fmt.Errorf("failed to decode final state: %w", err)
	}

	steps, err := db.TraceSteps(runID)
	if err != nil {
		return nil, err
	}
	rec.Steps = steps
	return &rec, nil
}

// DeleteTracesBefore removes traces created before cutoff and returns how
// many were removed. Steps go with them through the foreign key.
func (db *DB) DeleteTracesBefore(cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM lagcomp_traces WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// encodeState stores a diverged state as JSON null since NaN and Inf have
// no JSON encoding. The record's error text says what went wrong.
func encodeState(s lagcomp.KinematicState) (string, error) {
	if !s.IsFinite() {
		return "null", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
