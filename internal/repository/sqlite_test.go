package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/repository/db"
)

func openRepo(t *testing.T) *repository.Repository {
	t.Helper()
	conn, err := db.InitDB(":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return repository.NewRepository(conn)
}

func TestSQLite_ProfilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	if err := repo.ProfileRepo.Seed(ctx, profile.Builtin()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	list, err := repo.ProfileRepo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != len(profile.Builtin()) {
		t.Fatalf("want %d profiles, got %d", len(profile.Builtin()), len(list))
	}
	for i, p := range list {
		if p != profile.Builtin()[i] {
			t.Fatalf("slot %d changed in storage:\n got %+v\nwant %+v", i, p, profile.Builtin()[i])
		}
	}

	locked := list[0]
	locked.PeakTemp += 5
	if err := repo.ProfileRepo.Save(ctx, locked); !errors.Is(err, repository.ErrProfileLocked) {
		t.Fatalf("want ErrProfileLocked, got %v", err)
	}
	open := list[4]
	open.PeakDwell = 25
	if err := repo.ProfileRepo.Save(ctx, open); err != nil {
		t.Fatalf("Save unlocked: %v", err)
	}
	got, err := repo.ProfileRepo.Get(ctx, 4)
	if err != nil || got.PeakDwell != 25 {
		t.Fatalf("Get after save = %+v, %v", got, err)
	}
}

func TestSQLite_RunRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	var r [models.NumThermocouples]models.SensorReading
	r[0] = models.SensorReading{Temperature: 24.75, Status: models.SensorEnabled}
	r[1] = models.SensorReading{Temperature: 25.25, Status: models.SensorEnabled}
	r[2] = models.SensorReading{Status: models.SensorShortToGround}
	r[3] = models.SensorReading{Status: models.SensorDisabled}
	points := []plot.DataPoint{
		plot.NewDataPoint(models.StatePreheat, 100, 30, 25, r),
		plot.NewDataPoint(models.StatePreheat, 100, 30, 26, r),
		plot.NewDataPoint(models.StateFail, 0, 100, 0, r),
	}
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := models.RunRecord{
		ID: "r1", ProfileID: 1, ProfileName: "4300 63SN/37PB-b", Ambient: 25,
		Outcome: models.StateFail, Reason: "preheat timeout", StartedAt: start, FinishedAt: start.Add(3 * time.Second),
	}
	if err := repo.RunRepo.Create(ctx, rec, points); err != nil {
		t.Fatalf("Create: %v", err)
	}

	runs, err := repo.RunRepo.List(ctx, 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("List = %+v, %v", runs, err)
	}
	if runs[0].Points != 3 || runs[0].Outcome != models.StateFail || runs[0].Reason != "preheat timeout" || !runs[0].StartedAt.Equal(start) {
		t.Fatalf("unexpected record: %+v", runs[0])
	}

	back, err := repo.RunRepo.Points(ctx, "r1")
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(back) != len(points) {
		t.Fatalf("want %d points, got %d", len(points), len(back))
	}
	for i := range points {
		if back[i] != points[i] {
			t.Fatalf("point %d: got %+v want %+v", i, back[i], points[i])
		}
	}
}

func TestSQLite_StateAndEvents(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	st := models.OvenStatus{Session: "manual", State: models.StateManual, Setpoint: 100, Actual: 80.5, ActualOK: true, Fan: 30}
	st.Channels[0] = models.SensorReading{Temperature: 80.5, Status: models.SensorEnabled}
	if err := repo.StateRepo.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st.Fan = 45
	if err := repo.StateRepo.Save(ctx, st); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	got, err := repo.StateRepo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State != models.StateManual || got.Fan != 45 || got.Actual != 80.5 || got.Channels[0] != st.Channels[0] {
		t.Fatalf("unexpected state: %+v", got)
	}

	for _, typ := range []string{models.EventManualStart, models.EventSafetyCutoff, models.EventManualExit} {
		if err := repo.EventRepo.Append(ctx, models.OvenEvent{Type: typ, Description: typ}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	evs, err := repo.EventRepo.List(ctx, repository.EventQuery{Type: "safety_cutoff"})
	if err != nil || len(evs) != 1 {
		t.Fatalf("List = %+v, %v", evs, err)
	}

	latest, err := repo.EventRepo.List(ctx, repository.EventQuery{Limit: 1, NewestFirst: true})
	if err != nil || len(latest) != 1 || latest[0].Type != models.EventManualExit {
		t.Fatalf("latest = %+v, %v", latest, err)
	}
}

func TestSQLite_Operators(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)

	id, err := repo.Auth.Create(ctx, "operator", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Auth.Create(ctx, "operator", "other"); !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("duplicate: want ErrUserExists, got %v", err)
	}

	u, err := repo.Auth.GetByUsername(ctx, "operator")
	if err != nil || u == nil || u.ID != id || u.PasswordHash != "hash" {
		t.Fatalf("GetByUsername = %+v, %v", u, err)
	}
	if u.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}
	if u, err := repo.Auth.GetByUsername(ctx, "ghost"); u != nil || err != nil {
		t.Fatalf("unknown user = %+v, %v", u, err)
	}

	list, err := repo.Auth.List(ctx)
	if err != nil || len(list) != 1 || list[0].PasswordHash != "" {
		t.Fatalf("List = %+v, %v", list, err)
	}
}
