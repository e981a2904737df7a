package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/repository"
)

const (
	DefaultLogLimit = 200
	MaxLogLimit     = 1000
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidLimit     = errors.New("invalid limit")
)

// LogFilter selects event log entries. Zero bounds are open.
type LogFilter struct {
	From time.Time
	To   time.Time
	// Type is empty or one of the models.Event* types, in any case.
	Type string
	// Limit defaults to DefaultLogLimit and may not exceed MaxLogLimit.
	Limit       int
	NewestFirst bool
}

// EventLogService reads the oven event log.
type EventLogService struct {
	repo repository.EventRepo
}

func NewEventLogService(repo repository.EventRepo) *EventLogService {
	return &EventLogService{repo: repo}
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.OvenEvent, error) {
	q, err := f.query()
	if err != nil {
		return nil, err
	}
	events, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.OvenEvent{}
	}
	return events, nil
}

// query validates f and turns it into a repository query.
func (f LogFilter) query() (repository.EventQuery, error) {
	q := repository.EventQuery{
		From:        toUTC(f.From),
		To:          toUTC(f.To),
		Type:        strings.ToUpper(strings.TrimSpace(f.Type)),
		Limit:       f.Limit,
		NewestFirst: f.NewestFirst,
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, ErrInvalidTimeRange
	}
	if q.Type != "" && !knownEventType(q.Type) {
		return repository.EventQuery{}, ErrUnknownEventType
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultLogLimit
	case q.Limit < 0 || q.Limit > MaxLogLimit:
		return repository.EventQuery{}, ErrInvalidLimit
	}
	return q, nil
}

func knownEventType(t string) bool {
	switch t {
	case models.EventRunStart, models.EventRunComplete, models.EventRunFail, models.EventRunAbort,
		models.EventSensorFault, models.EventSafetyCutoff,
		models.EventManualStart, models.EventManualExit,
		models.EventMonitorStart, models.EventMonitorExit:
		return true
	}
	return false
}

func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
