package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reflow_oven/internal/models"
)

type ProfileSQLite struct {
	db *sql.DB
}

func NewProfileSQLite(db *sql.DB) *ProfileSQLite {
	return &ProfileSQLite{db: db}
}

const (
	profileColumns = `id, description, flags, liquidus_c, ramp1_slope, soak_temp1_c, soak_temp2_c,
		soak_time_s, ramp2_slope, peak_temp_c, peak_dwell_s, ramp_down_slope`

	selectProfilesSQL = `SELECT ` + profileColumns + ` FROM profiles ORDER BY id ASC`
	selectProfileSQL  = `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`
	selectFlagsSQL    = `SELECT flags FROM profiles WHERE id = ?`

	upsertProfileSQL = `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description=excluded.description,
			flags=excluded.flags,
			liquidus_c=excluded.liquidus_c,
			ramp1_slope=excluded.ramp1_slope,
			soak_temp1_c=excluded.soak_temp1_c,
			soak_temp2_c=excluded.soak_temp2_c,
			soak_time_s=excluded.soak_time_s,
			ramp2_slope=excluded.ramp2_slope,
			peak_temp_c=excluded.peak_temp_c,
			peak_dwell_s=excluded.peak_dwell_s,
			ramp_down_slope=excluded.ramp_down_slope
	`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(s rowScanner) (models.Profile, error) {
	var p models.Profile
	err := s.Scan(
		&p.ID, &p.Description, &p.Flags, &p.Liquidus,
		&p.Ramp1Slope, &p.SoakTemp1, &p.SoakTemp2, &p.SoakTime,
		&p.Ramp2Slope, &p.PeakTemp, &p.PeakDwell, &p.RampDownSlope,
	)
	return p, err
}

func profileArgs(p models.Profile) []any {
	return []any{
		p.ID, p.Description, p.Flags, p.Liquidus,
		p.Ramp1Slope, p.SoakTemp1, p.SoakTemp2, p.SoakTime,
		p.Ramp2Slope, p.PeakTemp, p.PeakDwell, p.RampDownSlope,
	}
}

// List returns every stored profile ordered by slot.
func (r *ProfileSQLite) List(ctx context.Context) ([]models.Profile, error) {
	rows, err := r.db.QueryContext(ctx, selectProfilesSQL)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Profile, 0, models.MaxProfiles)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProfileSQLite) Get(ctx context.Context, id int) (models.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, selectProfileSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, fmt.Errorf("%w: slot %d", ErrProfileNotFound, id)
		}
		return models.Profile{}, fmt.Errorf("select profile %d: %w", id, err)
	}
	return p, nil
}

// Save validates p and writes it to its slot unless the slot holds a
// locked profile.
func (r *ProfileSQLite) Save(ctx context.Context, p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var flags models.ProfileFlags
	err := r.db.QueryRowContext(ctx, selectFlagsSQL, p.ID).Scan(&flags)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("select profile %d: %w", p.ID, err)
	case flags&models.ProfileUnlocked == 0:
		return fmt.Errorf("%w: slot %d", ErrProfileLocked, p.ID)
	}
	if _, err := r.db.ExecContext(ctx, upsertProfileSQL, profileArgs(p)...); err != nil {
		return fmt.Errorf("save profile %d: %w", p.ID, err)
	}
	return nil
}

// Seed writes all profiles in one transaction, overwriting locked slots.
func (r *ProfileSQLite) Seed(ctx context.Context, profiles []models.Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsertProfileSQL, profileArgs(p)...); err != nil {
			return fmt.Errorf("seed profile %d: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
