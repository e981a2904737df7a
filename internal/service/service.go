package service

import (
	"context"
	"fmt"
	"time"

	"reflow_oven/internal/executor"
	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/sensor"
)

// Authorization manages operator accounts and bearer tokens.
type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	Operators(ctx context.Context) ([]models.User, error)
}

// Oven is the operator surface of the run driver. Sessions started here
// run in the background until they end or the service is closed.
type Oven interface {
	StartRun(ctx context.Context, profileID int) error
	Abort() error
	Acknowledge() error

	StartManual() error
	Manual(cmd ManualCommand) error

	StartMonitor() error
	StopMonitor() error
	ToggleChannel(ch int) (bool, error)

	Status() models.OvenStatus
	Plot() *plot.Plot
}

// Profiles exposes the profile store and the ideal curve of a profile.
type Profiles interface {
	List(ctx context.Context) ([]models.Profile, error)
	Get(ctx context.Context, id int) (models.Profile, error)
	Save(ctx context.Context, p models.Profile) error
	Preview(ctx context.Context, id int) ([]executor.CurvePoint, error)
}

type Runs interface {
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)
	GetRun(ctx context.Context, id string) (models.RunRecord, []plot.DataPoint, error)
}

// Monitoring exposes read-only state (temperatures, outputs, channels).
type Monitoring interface {
	GetState(ctx context.Context) (models.OvenStatus, error)
	LastSaved(ctx context.Context) (models.OvenStatus, error)
	Channels() []ChannelInfo
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.OvenEvent, error)
}

type Service struct {
	Oven
	Profiles
	Runs
	Monitoring
	EventLog
	Authorization
}

// AuthConfig configures token signing. When OperatorUser is set the
// account is created on startup if missing.
type AuthConfig struct {
	SigningKey       string
	TokenTTL         time.Duration
	OperatorUser     string
	OperatorPassword string
}

// NewService wires the repository layer and the running oven into the
// services used by the HTTP layer.
func NewService(ctx context.Context, repos *repository.Repository, oven *OvenService, sensors *sensor.Array, auth AuthConfig) (*Service, error) {
	authSvc, err := NewAuthService(repos.Auth, auth.SigningKey, auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	if auth.OperatorUser != "" {
		if _, err := authSvc.EnsureUser(ctx, auth.OperatorUser, auth.OperatorPassword); err != nil {
			return nil, fmt.Errorf("provision operator %q: %w", auth.OperatorUser, err)
		}
	}
	return &Service{
		Oven:          oven,
		Profiles:      NewProfileService(repos.ProfileRepo, sensors),
		Runs:          NewRunHistoryService(repos.RunRepo),
		Monitoring:    NewMonitoringService(oven, sensors, repos.StateRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: authSvc,
	}, nil
}
