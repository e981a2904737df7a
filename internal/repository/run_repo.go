package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"

	"github.com/google/uuid"
)

// RunSQLite persists run recordings: one runs row plus one data_points row
// per tick.
type RunSQLite struct {
	db *sql.DB
}

func NewRunSQLite(db *sql.DB) *RunSQLite {
	return &RunSQLite{db: db}
}

const (
	insertRunSQL = `
		INSERT INTO runs (id, profile_id, profile_name, ambient_c, outcome, reason, points, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	insertPointSQL = `
		INSERT INTO data_points (run_id, t, state, heater, fan, target_c, channels)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	runColumns     = `id, profile_id, profile_name, ambient_c, outcome, reason, points, started_at, finished_at`
	selectRunsSQL  = `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ?`
	selectRunSQL   = `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	selectPointSQL = `SELECT t, state, heater, fan, target_c, channels FROM data_points WHERE run_id = ? ORDER BY t ASC`
)

// Create stores rec and its points atomically. An empty ID is generated
// and written back into the stored row only.
func (r *RunSQLite) Create(ctx context.Context, rec models.RunRecord, points []plot.DataPoint) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", rec.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, insertRunSQL,
		rec.ID,
		rec.ProfileID,
		rec.ProfileName,
		rec.Ambient,
		rec.Outcome.String(),
		rec.Reason,
		len(points),
		rec.StartedAt.UTC(),
		rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertPointSQL)
	if err != nil {
		return fmt.Errorf("prepare data points: %w", err)
	}
	defer stmt.Close()

	for t, dp := range points {
		var readings [models.NumThermocouples]models.SensorReading
		for i := range readings {
			readings[i].Temperature, readings[i].Status = dp.Channel(i)
		}
		channels, err := json.Marshal(readings)
		if err != nil {
			return fmt.Errorf("marshal channels at %d: %w", t, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, t, dp.State().String(), dp.Heater(), dp.Fan(), dp.Target(), string(channels)); err != nil {
			return fmt.Errorf("insert data point %d: %w", t, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", rec.ID, err)
	}
	return nil
}

func scanRun(s rowScanner) (models.RunRecord, error) {
	var (
		rec     models.RunRecord
		outcome string
	)
	if err := s.Scan(&rec.ID, &rec.ProfileID, &rec.ProfileName, &rec.Ambient, &outcome, &rec.Reason, &rec.Points, &rec.StartedAt, &rec.FinishedAt); err != nil {
		return models.RunRecord{}, err
	}
	if err := rec.Outcome.UnmarshalText([]byte(outcome)); err != nil {
		return models.RunRecord{}, err
	}
	rec.StartedAt = rec.StartedAt.UTC()
	rec.FinishedAt = rec.FinishedAt.UTC()
	return rec, nil
}

// List returns the most recent runs first.
func (r *RunSQLite) List(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, selectRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RunSQLite) Get(ctx context.Context, id string) (models.RunRecord, error) {
	rec, err := scanRun(r.db.QueryRowContext(ctx, selectRunSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return models.RunRecord{}, fmt.Errorf("select run %s: %w", id, err)
	}
	return rec, nil
}

// Points rebuilds the recording of run id, indexed by tick.
func (r *RunSQLite) Points(ctx context.Context, id string) ([]plot.DataPoint, error) {
	rows, err := r.db.QueryContext(ctx, selectPointSQL, id)
	if err != nil {
		return nil, fmt.Errorf("select data points: %w", err)
	}
	defer rows.Close()

	var out []plot.DataPoint
	for rows.Next() {
		var (
			t, heater, fan int
			state, chans   string
			target         float64
			st             models.RunState
			readings       [models.NumThermocouples]models.SensorReading
		)
		if err := rows.Scan(&t, &state, &heater, &fan, &target, &chans); err != nil {
			return nil, fmt.Errorf("scan data point: %w", err)
		}
		if t != len(out) {
			return nil, fmt.Errorf("run %s: data point %d out of sequence", id, t)
		}
		if err := st.UnmarshalText([]byte(state)); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(chans), &readings); err != nil {
			return nil, fmt.Errorf("decode channels at %d: %w", t, err)
		}
		out = append(out, plot.NewDataPoint(st, heater, fan, target, readings))
	}
	return out, rows.Err()
}
