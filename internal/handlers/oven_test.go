package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/sensor"
	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
)

func doRequest(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func newOvenRouter(oven *mockOven, mon *mockMonitoring) *gin.Engine {
	return newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		Oven:          oven,
		Monitoring:    mon,
	})
}

func TestOvenHandlers_StatusRequiresAuth(t *testing.T) {
	mon := &mockMonitoring{state: models.OvenStatus{Session: service.SessionRun, State: models.StatePreheat, Actual: 80, ActualOK: true}}
	r := newOvenRouter(&mockOven{}, mon)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/oven/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/v1/oven/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var st models.OvenStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.State != models.StatePreheat || st.Actual != 80 {
		t.Fatalf("unexpected status: %+v", st)
	}

	mon.err = errors.New("boom")
	w = doRequest(r, http.MethodGet, "/api/v1/oven/status", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestOvenHandlers_RunLifecycle(t *testing.T) {
	oven := &mockOven{status: models.OvenStatus{Session: service.SessionRun, State: models.StatePreheat}}
	r := newOvenRouter(oven, &mockMonitoring{})

	w := doRequest(r, http.MethodPost, "/api/v1/oven/run", bytes.NewBufferString(`{"profile_id":0}`))
	if w.Code != http.StatusOK {
		t.Fatalf("run status=%d, body=%s", w.Code, w.Body.String())
	}
	if oven.lastProfileID != 0 {
		t.Fatalf("expected profile 0, got %d", oven.lastProfileID)
	}
	var resp struct {
		Status string            `json:"status"`
		Oven   models.OvenStatus `json:"oven"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != statusStarted || resp.Oven.State != models.StatePreheat {
		t.Fatalf("unexpected response: %+v", resp)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/oven/abort", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("abort status=%d", w.Code)
	}
	w = doRequest(r, http.MethodPost, "/api/v1/oven/ack", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ack status=%d", w.Code)
	}
	want := []string{"run", "abort", "ack"}
	if strings.Join(oven.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls: got %v, want %v", oven.calls, want)
	}
}

func TestOvenHandlers_RunErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"missing profile", `{}`, nil, http.StatusBadRequest},
		{"malformed body", `{"profile_id":"x"}`, nil, http.StatusBadRequest},
		{"no sensors", `{"profile_id":1}`, service.ErrNoSensors, http.StatusServiceUnavailable},
		{"busy", `{"profile_id":1}`, service.ErrBusy, http.StatusConflict},
		{"unknown profile", `{"profile_id":9}`, repository.ErrProfileNotFound, http.StatusNotFound},
		{"invalid profile", `{"profile_id":9}`, models.ErrInvalidProfile, http.StatusBadRequest},
		{"unexpected", `{"profile_id":1}`, errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			oven := &mockOven{runErr: tc.err}
			r := newOvenRouter(oven, &mockMonitoring{})
			w := doRequest(r, http.MethodPost, "/api/v1/oven/run", bytes.NewBufferString(tc.body))
			if w.Code != tc.code {
				t.Fatalf("got %d, want %d (body=%s)", w.Code, tc.code, w.Body.String())
			}
		})
	}
}

func TestOvenHandlers_AckWithoutFinishedRun(t *testing.T) {
	r := newOvenRouter(&mockOven{ackErr: service.ErrNoAckPending, abortErr: service.ErrNotRunning}, &mockMonitoring{})
	if w := doRequest(r, http.MethodPost, "/api/v1/oven/ack", nil); w.Code != http.StatusConflict {
		t.Fatalf("ack: expected 409, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/api/v1/oven/abort", nil); w.Code != http.StatusConflict {
		t.Fatalf("abort: expected 409, got %d", w.Code)
	}
}

func TestOvenHandlers_Manual(t *testing.T) {
	oven := &mockOven{}
	r := newOvenRouter(oven, &mockMonitoring{})

	if w := doRequest(r, http.MethodPost, "/api/v1/oven/manual", nil); w.Code != http.StatusOK {
		t.Fatalf("manual status=%d", w.Code)
	}
	w := doRequest(r, http.MethodPost, "/api/v1/oven/manual/command", bytes.NewBufferString(`{"command":"up"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("command status=%d, body=%s", w.Code, w.Body.String())
	}
	if oven.lastCommand != service.ManualUp {
		t.Fatalf("expected up, got %q", oven.lastCommand)
	}

	oven.commandErr = service.ErrWrongSession
	w = doRequest(r, http.MethodPost, "/api/v1/oven/manual/command", bytes.NewBufferString(`{"command":"fan"}`))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/oven/manual/command", bytes.NewBufferString(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without command, got %d", w.Code)
	}
}

func TestOvenHandlers_MonitorAndSensors(t *testing.T) {
	oven := &mockOven{toggleOn: false}
	mon := &mockMonitoring{channels: []service.ChannelInfo{
		{Channel: 1, Enabled: true, Last: models.SensorReading{Temperature: 24.5}},
		{Channel: 2, Enabled: false, Last: models.SensorReading{Status: models.SensorDisabled}},
	}}
	r := newOvenRouter(oven, mon)

	if w := doRequest(r, http.MethodPost, "/api/v1/oven/monitor", nil); w.Code != http.StatusOK {
		t.Fatalf("monitor status=%d", w.Code)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/sensors", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sensors status=%d", w.Code)
	}
	var chs []service.ChannelInfo
	if err := json.Unmarshal(w.Body.Bytes(), &chs); err != nil {
		t.Fatalf("unmarshal channels: %v", err)
	}
	if len(chs) != 2 || chs[0].Last.Temperature != 24.5 || chs[1].Last.Status != models.SensorDisabled {
		t.Fatalf("unexpected channels: %+v", chs)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/sensors/2/toggle", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status=%d", w.Code)
	}
	if oven.lastChannel != 1 {
		t.Fatalf("channel 2 is index 1, got %d", oven.lastChannel)
	}

	if w := doRequest(r, http.MethodPost, "/api/v1/sensors/0/toggle", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for channel 0, got %d", w.Code)
	}
	oven.toggleErr = sensor.ErrNoChannel
	if w := doRequest(r, http.MethodPost, "/api/v1/sensors/8/toggle", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for channel 8, got %d", w.Code)
	}

	if w := doRequest(r, http.MethodDelete, "/api/v1/oven/monitor", nil); w.Code != http.StatusOK {
		t.Fatalf("monitor stop status=%d", w.Code)
	}
}

func TestOvenHandlers_Plot(t *testing.T) {
	pl := plot.New()
	var readings [models.NumThermocouples]models.SensorReading
	readings[0] = models.SensorReading{Temperature: 30, Status: models.SensorEnabled}
	for i := 1; i < models.NumThermocouples; i++ {
		readings[i] = models.SensorReading{Status: models.SensorMissing}
	}
	if err := pl.AddPoint(0, plot.NewDataPoint(models.StatePreheat, 100, 30, 26, readings)); err != nil {
		t.Fatalf("AddPoint: %v", err)
	}
	if err := pl.AddPoint(1, plot.NewDataPoint(models.StatePreheat, 100, 30, 27, readings)); err != nil {
		t.Fatalf("AddPoint: %v", err)
	}
	r := newOvenRouter(&mockOven{plot: pl}, &mockMonitoring{})

	w := doRequest(r, http.MethodGet, "/api/v1/oven/plot?format=csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("csv status=%d", w.Code)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %q", w.Body.String())
	}
	if lines[1] != "preheat,0,26.0,30.0,100,30,30.0,0.0,0.0,0.0;" {
		t.Fatalf("unexpected row: %q", lines[1])
	}

	w = doRequest(r, http.MethodGet, "/api/v1/oven/plot", nil)
	var out struct {
		Live      bool              `json:"live"`
		LastIndex int               `json:"last_index"`
		Points    []json.RawMessage `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Live || out.LastIndex != 1 || len(out.Points) != 2 {
		t.Fatalf("unexpected plot: %+v", out)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&service.Service{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `http_requests_total{method="GET",path="/health",status="200"}`) {
		t.Fatalf("expected request counter for /health in metrics output")
	}
}
