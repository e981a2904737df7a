package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reflow_oven/internal/models"
)

// StateSQLite keeps the last published oven status so that it survives a
// restart of the service.
type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	ovenStateRowID = 1

	upsertStateSQL = `
		INSERT INTO oven_state (id, session, state, time_s, profile_id, setpoint_c, actual_c, heater, fan, channels, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session=excluded.session,
			state=excluded.state,
			time_s=excluded.time_s,
			profile_id=excluded.profile_id,
			setpoint_c=excluded.setpoint_c,
			actual_c=excluded.actual_c,
			heater=excluded.heater,
			fan=excluded.fan,
			channels=excluded.channels,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT session, state, time_s, profile_id, setpoint_c, actual_c, heater, fan, channels, updated_at
		FROM oven_state WHERE id=?
	`
)

// Save overwrites the single oven_state row. A missing actual temperature
// is stored as NULL.
func (r *StateSQLite) Save(ctx context.Context, st models.OvenStatus) error {
	channels, err := json.Marshal(st.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}
	var actual sql.NullFloat64
	if st.ActualOK {
		actual = sql.NullFloat64{Float64: st.Actual, Valid: true}
	}
	ts := st.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = r.db.ExecContext(ctx, upsertStateSQL,
		ovenStateRowID,
		st.Session,
		st.State.String(),
		st.Time,
		st.ProfileID,
		st.Setpoint,
		actual,
		st.Heater,
		st.Fan,
		string(channels),
		ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save oven state: %w", err)
	}
	return nil
}

// Load returns the stored status, or the zero status when none was saved yet.
func (r *StateSQLite) Load(ctx context.Context) (models.OvenStatus, error) {
	var (
		st       models.OvenStatus
		state    string
		actual   sql.NullFloat64
		channels string
	)
	err := r.db.QueryRowContext(ctx, selectStateSQL, ovenStateRowID).Scan(
		&st.Session,
		&state,
		&st.Time,
		&st.ProfileID,
		&st.Setpoint,
		&actual,
		&st.Heater,
		&st.Fan,
		&channels,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OvenStatus{}, nil
		}
		return models.OvenStatus{}, fmt.Errorf("load oven state: %w", err)
	}
	if err := st.State.UnmarshalText([]byte(state)); err != nil {
		return models.OvenStatus{}, err
	}
	if err := json.Unmarshal([]byte(channels), &st.Channels); err != nil {
		return models.OvenStatus{}, fmt.Errorf("decode channels: %w", err)
	}
	st.Actual, st.ActualOK = actual.Float64, actual.Valid
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}
