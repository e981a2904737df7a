package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileLocked   = errors.New("profile is locked")
	ErrRunNotFound     = errors.New("run not found")
	ErrUserExists      = errors.New("user already exists")
)

// Authorization stores operator accounts. GetByUsername returns nil
// without error for an unknown name.
type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// ProfileRepo is the profile store. Locked slots cannot be overwritten
// through Save; Seed replaces them unconditionally.
type ProfileRepo interface {
	List(ctx context.Context) ([]models.Profile, error)
	Get(ctx context.Context, id int) (models.Profile, error)
	Save(ctx context.Context, p models.Profile) error
	Seed(ctx context.Context, profiles []models.Profile) error
}

// RunRepo stores finished runs together with their recording.
type RunRepo interface {
	Create(ctx context.Context, rec models.RunRecord, points []plot.DataPoint) error
	List(ctx context.Context, limit int) ([]models.RunRecord, error)
	Get(ctx context.Context, id string) (models.RunRecord, error)
	Points(ctx context.Context, id string) ([]plot.DataPoint, error)
}

type StateRepo interface {
	Save(ctx context.Context, st models.OvenStatus) error
	Load(ctx context.Context) (models.OvenStatus, error)
}

// EventQuery selects log entries. Zero fields do not filter.
type EventQuery struct {
	From time.Time
	To   time.Time
	Type string
	// Limit caps the result; 0 means no cap.
	Limit int
	// NewestFirst orders by descending time.
	NewestFirst bool
}

type EventRepo interface {
	Append(ctx context.Context, e models.OvenEvent) error
	List(ctx context.Context, q EventQuery) ([]models.OvenEvent, error)
}

type Repository struct {
	ProfileRepo ProfileRepo
	RunRepo     RunRepo
	StateRepo   StateRepo
	EventRepo   EventRepo
	Auth        Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		ProfileRepo: NewProfileSQLite(db),
		RunRepo:     NewRunSQLite(db),
		StateRepo:   NewStateSQLite(db),
		EventRepo:   NewEventSQLite(db),
		Auth:        NewOperatorSQLite(db),
	}
}
