package repository

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"

	"github.com/DATA-DOG/go-sqlmock"
)

func twoPoints() []plot.DataPoint {
	var r [models.NumThermocouples]models.SensorReading
	r[0] = models.SensorReading{Temperature: 25.5, Status: models.SensorEnabled}
	r[1] = models.SensorReading{Status: models.SensorOpen}
	r[2] = models.SensorReading{Status: models.SensorDisabled}
	r[3] = models.SensorReading{Status: models.SensorMissing}
	return []plot.DataPoint{
		plot.NewDataPoint(models.StatePreheat, 100, 30, 25, r),
		plot.NewDataPoint(models.StatePreheat, 80, 30, 26, r),
	}
}

func TestRunSQLite_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := models.RunRecord{
		ID: "run-1", ProfileID: 2, ProfileName: "NC-31 LOW TEMP LF", Ambient: 25,
		Outcome: models.StateComplete, Reason: "", StartedAt: start, FinishedAt: start.Add(5 * time.Minute),
	}
	chans := `[{"temperature_c":25.5,"cold_junction_c":0,"status":"ok"},` +
		`{"temperature_c":0,"cold_junction_c":0,"status":"open"},` +
		`{"temperature_c":0,"cold_junction_c":0,"status":"disabled"},` +
		`{"temperature_c":0,"cold_junction_c":0,"status":"missing"}]`

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertRunSQL)).
		WithArgs("run-1", 2, "NC-31 LOW TEMP LF", 25.0, "complete", "", 2, rec.StartedAt, rec.FinishedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(insertPointSQL))
	prep.ExpectExec().WithArgs("run-1", 0, "preheat", 100, 30, 25.0, chans).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("run-1", 1, "preheat", 80, 30, 26.0, chans).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewRunSQLite(db).Create(ctx(t), rec, twoPoints()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestRunSQLite_CreateRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertRunSQL)).WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err = NewRunSQLite(db).Create(ctx(t), models.RunRecord{Outcome: models.StateFail}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestRunSQLite_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectRunSQL)).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewRunSQLite(db).Get(ctx(t), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("want ErrRunNotFound, got %v", err)
	}
}

func TestRunSQLite_Points(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	chans := `[{"temperature_c":150.25,"status":"ok"},{"status":"open"},{"status":"disabled"},{"temperature_c":140,"status":"ok"}]`
	rows := sqlmock.NewRows([]string{"t", "state", "heater", "fan", "target_c", "channels"}).
		AddRow(0, "soak", 40, 30, 150.0, chans).
		AddRow(1, "soak", 35, 30, 150.5, chans)
	mock.ExpectQuery(regexp.QuoteMeta(selectPointSQL)).WithArgs("run-1").WillReturnRows(rows)

	got, err := NewRunSQLite(db).Points(ctx(t), "run-1")
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 points, got %d", len(got))
	}
	if got[1].State() != models.StateSoak || got[1].Heater() != 35 || got[1].Target() != 150.5 {
		t.Fatalf("unexpected point: %+v", got[1])
	}
	if avg, ok := got[0].AverageTemperature(); !ok || avg != 145.125 {
		t.Fatalf("average = %v, %v", avg, ok)
	}
}

func TestRunSQLite_PointsOutOfSequence(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"t", "state", "heater", "fan", "target_c", "channels"}).
		AddRow(1, "soak", 40, 30, 150.0, "[]")
	mock.ExpectQuery(regexp.QuoteMeta(selectPointSQL)).WithArgs("run-1").WillReturnRows(rows)

	if _, err := NewRunSQLite(db).Points(ctx(t), "run-1"); err == nil {
		t.Fatal("expected sequence error")
	}
}
