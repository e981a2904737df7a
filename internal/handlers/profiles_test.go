package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"reflow_oven/internal/executor"
	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/service"
)

func TestProfileHandlers(t *testing.T) {
	p := models.Profile{ID: 5, Description: "SAC305", Flags: models.ProfileUnlocked, SoakTemp1: 150}
	profiles := &mockProfiles{
		list:    []models.Profile{p},
		profile: p,
		curve:   []executor.CurvePoint{{Time: 0, State: models.StatePreheat, Setpoint: 26}},
	}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, Profiles: profiles})

	w := doRequest(r, http.MethodGet, "/api/v1/profiles", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d", w.Code)
	}
	var list []models.Profile
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("unexpected list: %s (%v)", w.Body.String(), err)
	}

	w = doRequest(r, http.MethodGet, "/api/v1/profiles/5", nil)
	if w.Code != http.StatusOK || profiles.lastID != 5 {
		t.Fatalf("get status=%d id=%d", w.Code, profiles.lastID)
	}

	if w := doRequest(r, http.MethodGet, "/api/v1/profiles/10", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for slot 10, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/v1/profiles/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric slot, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/v1/profiles/5/preview", nil)
	if w.Code != http.StatusOK || profiles.previews != 1 {
		t.Fatalf("preview status=%d previews=%d", w.Code, profiles.previews)
	}

	body := `{"id":3,"description":"EDIT","ramp1_slope":1,"soak_temp1_c":140}`
	w = doRequest(r, http.MethodPut, "/api/v1/profiles/6", bytes.NewBufferString(body))
	if w.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", w.Code, w.Body.String())
	}
	if len(profiles.saved) != 1 || profiles.saved[0].ID != 6 || profiles.saved[0].Description != "EDIT" {
		t.Fatalf("the slot comes from the path: %+v", profiles.saved)
	}
}

func TestProfileHandlers_Errors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{repository.ErrProfileLocked, http.StatusConflict},
		{models.ErrInvalidProfile, http.StatusBadRequest},
		{repository.ErrProfileNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		profiles := &mockProfiles{err: tc.err}
		r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Profiles: profiles})
		w := doRequest(r, http.MethodPut, "/api/v1/profiles/0", bytes.NewBufferString(`{"description":"X"}`))
		if w.Code != tc.code {
			t.Fatalf("%v: got %d, want %d", tc.err, w.Code, tc.code)
		}
	}
}

func TestRunHandlers(t *testing.T) {
	var readings [models.NumThermocouples]models.SensorReading
	for i := range readings {
		readings[i].Status = models.SensorMissing
	}
	runs := &mockRuns{
		runs:   []models.RunRecord{{ID: "r1", Outcome: models.StateComplete}},
		run:    models.RunRecord{ID: "r1", ProfileID: 0, Outcome: models.StateComplete},
		points: []plot.DataPoint{plot.NewDataPoint(models.StatePreheat, 50, 30, 30, readings)},
	}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Runs: runs})

	w := doRequest(r, http.MethodGet, "/api/v1/runs?limit=5", nil)
	if w.Code != http.StatusOK || runs.lastLimit != 5 {
		t.Fatalf("list status=%d limit=%d", w.Code, runs.lastLimit)
	}
	doRequest(r, http.MethodGet, "/api/v1/runs?limit=-1", nil)
	if runs.lastLimit != defaultRunsLimit {
		t.Fatalf("invalid limit should fall back to default, got %d", runs.lastLimit)
	}

	w = doRequest(r, http.MethodGet, "/api/v1/runs/r1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}
	var out struct {
		Run    models.RunRecord  `json:"run"`
		Points []json.RawMessage `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Run.ID != "r1" || len(out.Points) != 1 {
		t.Fatalf("unexpected run: %+v", out)
	}

	w = doRequest(r, http.MethodGet, "/api/v1/runs/r1?format=csv", nil)
	if !strings.HasPrefix(w.Body.String(), "state,time,target") {
		t.Fatalf("csv must start with the column title, got %q", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "preheat,0,30.0,nan,50,30") {
		t.Fatalf("unexpected csv: %q", w.Body.String())
	}

	runs.err = repository.ErrRunNotFound
	if w := doRequest(r, http.MethodGet, "/api/v1/runs/zz", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
