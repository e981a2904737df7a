package repository

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"reflow_oven/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

var stateCols = []string{"session", "state", "time_s", "profile_id", "setpoint_c", "actual_c", "heater", "fan", "channels", "updated_at"}

func TestStateSQLite_SaveWritesNullWithoutActual(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	st := models.OvenStatus{
		Session: "run", State: models.StateFail, Time: 12, ProfileID: 3,
		Setpoint: 37, Heater: 0, Fan: 100, UpdatedAt: at,
	}
	mock.ExpectExec(regexp.QuoteMeta(upsertStateSQL)).
		WithArgs(1, "run", "fail", 12, 3, 37.0, nil, 0, 100, sqlmock.AnyArg(), at.UTC()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := NewStateSQLite(db).Save(ctx(t), st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestStateSQLite_LoadEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectStateSQL)).WithArgs(1).WillReturnError(sql.ErrNoRows)

	got, err := NewStateSQLite(db).Load(ctx(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State != models.StateOff || got.Session != "" {
		t.Fatalf("expected zero status, got %+v", got)
	}
}

func TestStateSQLite_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	chans := `[{"temperature_c":180,"status":"ok"},{"status":"open"},{"status":"disabled"},{"status":"disabled"}]`
	mock.ExpectQuery(regexp.QuoteMeta(selectStateSQL)).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(stateCols).AddRow("run", "soak", 90, 1, 175.5, 180.0, 55, 30, chans, at))

	got, err := NewStateSQLite(db).Load(ctx(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State != models.StateSoak || got.Time != 90 || !got.ActualOK || got.Actual != 180 {
		t.Fatalf("unexpected status: %+v", got)
	}
	if got.Channels[1].Status != models.SensorOpen {
		t.Fatalf("channel 1 = %v", got.Channels[1].Status)
	}
}

func TestStateSQLite_LoadBadState(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectStateSQL)).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(stateCols).AddRow("run", "melting", 0, 0, 0.0, nil, 0, 0, "[]", time.Now()))

	if _, err := NewStateSQLite(db).Load(ctx(t)); err == nil {
		t.Fatal("expected error for unknown state")
	}
}
