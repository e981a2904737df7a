package handlers

import (
	"context"
	"net/http"

	"reflow_oven/internal/executor"
	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID  int
	signUpErr error
	token     string
	tokenErr  error
	parseID   int
	parseErr  error
	operators []models.User
	opsErr    error

	lastSignUp     authCredentials
	lastSignIn     authCredentials
	lastParseToken string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUp = authCredentials{Username: username, Password: password}
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastSignIn = authCredentials{Username: username, Password: password}
	return m.token, m.tokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) Operators(context.Context) ([]models.User, error) {
	return m.operators, m.opsErr
}

type mockOven struct {
	status models.OvenStatus
	plot   *plot.Plot

	runErr     error
	abortErr   error
	ackErr     error
	manualErr  error
	commandErr error
	monitorErr error
	stopErr    error
	toggleOn   bool
	toggleErr  error

	lastProfileID int
	lastCommand   service.ManualCommand
	lastChannel   int
	calls         []string
}

func (m *mockOven) StartRun(ctx context.Context, id int) error {
	m.calls = append(m.calls, "run")
	m.lastProfileID = id
	return m.runErr
}
func (m *mockOven) Abort() error {
	m.calls = append(m.calls, "abort")
	return m.abortErr
}
func (m *mockOven) Acknowledge() error {
	m.calls = append(m.calls, "ack")
	return m.ackErr
}
func (m *mockOven) StartManual() error {
	m.calls = append(m.calls, "manual")
	return m.manualErr
}
func (m *mockOven) Manual(cmd service.ManualCommand) error {
	m.calls = append(m.calls, "command")
	m.lastCommand = cmd
	return m.commandErr
}
func (m *mockOven) StartMonitor() error {
	m.calls = append(m.calls, "monitor")
	return m.monitorErr
}
func (m *mockOven) StopMonitor() error {
	m.calls = append(m.calls, "monitor_stop")
	return m.stopErr
}
func (m *mockOven) ToggleChannel(ch int) (bool, error) {
	m.calls = append(m.calls, "toggle")
	m.lastChannel = ch
	return m.toggleOn, m.toggleErr
}
func (m *mockOven) Status() models.OvenStatus { return m.status }
func (m *mockOven) Plot() *plot.Plot {
	if m.plot == nil {
		m.plot = plot.New()
	}
	return m.plot
}

type mockProfiles struct {
	list     []models.Profile
	profile  models.Profile
	curve    []executor.CurvePoint
	err      error
	saved    []models.Profile
	lastID   int
	previews int
}

func (m *mockProfiles) List(ctx context.Context) ([]models.Profile, error) {
	return m.list, m.err
}
func (m *mockProfiles) Get(ctx context.Context, id int) (models.Profile, error) {
	m.lastID = id
	return m.profile, m.err
}
func (m *mockProfiles) Save(ctx context.Context, p models.Profile) error {
	m.saved = append(m.saved, p)
	return m.err
}
func (m *mockProfiles) Preview(ctx context.Context, id int) ([]executor.CurvePoint, error) {
	m.lastID = id
	m.previews++
	return m.curve, m.err
}

type mockRuns struct {
	runs      []models.RunRecord
	run       models.RunRecord
	points    []plot.DataPoint
	err       error
	lastLimit int
}

func (m *mockRuns) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	m.lastLimit = limit
	return m.runs, m.err
}
func (m *mockRuns) GetRun(ctx context.Context, id string) (models.RunRecord, []plot.DataPoint, error) {
	return m.run, m.points, m.err
}

type mockMonitoring struct {
	state    models.OvenStatus
	saved    models.OvenStatus
	channels []service.ChannelInfo
	err      error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.OvenStatus, error) {
	return m.state, m.err
}
func (m *mockMonitoring) LastSaved(ctx context.Context) (models.OvenStatus, error) {
	return m.saved, m.err
}
func (m *mockMonitoring) Channels() []service.ChannelInfo {
	return m.channels
}

type mockEventLog struct {
	resp  []models.OvenEvent
	err   error
	calls int
	last  service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.OvenEvent, error) {
	m.calls++
	m.last = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
