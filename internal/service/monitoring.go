package service

import (
	"context"

	"reflow_oven/internal/models"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/sensor"
)

// ChannelInfo describes one thermocouple channel for the operator.
type ChannelInfo struct {
	Channel int                  `json:"channel"`
	Enabled bool                 `json:"enabled"`
	OffsetC float64              `json:"offset_c"`
	Last    models.SensorReading `json:"last"`
	Error   string               `json:"error,omitempty"`
}

type statusSource interface {
	Status() models.OvenStatus
}

// MonitoringService is the read side of the oven.
type MonitoringService struct {
	oven      statusSource
	sensors   *sensor.Array
	stateRepo repository.StateRepo
}

func NewMonitoringService(oven statusSource, sensors *sensor.Array, stateRepo repository.StateRepo) *MonitoringService {
	return &MonitoringService{oven: oven, sensors: sensors, stateRepo: stateRepo}
}

// GetState returns the live oven status.
func (s *MonitoringService) GetState(ctx context.Context) (models.OvenStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.OvenStatus{}, err
	}
	st := s.oven.Status()
	st.UpdatedAt = toUTC(st.UpdatedAt)
	return st, nil
}

// LastSaved returns the status persisted by the previous tick, which is
// what survives a restart of the service.
func (s *MonitoringService) LastSaved(ctx context.Context) (models.OvenStatus, error) {
	return s.stateRepo.Load(ctx)
}

// Channels lists every configured channel with its latest reading.
func (s *MonitoringService) Channels() []ChannelInfo {
	out := make([]ChannelInfo, 0, s.sensors.Len())
	for i := 0; i < s.sensors.Len(); i++ {
		tc, err := s.sensors.Channel(i)
		if err != nil {
			continue
		}
		last, lerr := tc.Last()
		info := ChannelInfo{
			Channel: i + 1,
			Enabled: tc.Enabled(),
			OffsetC: tc.Offset(),
			Last:    last,
		}
		if lerr != nil {
			info.Error = lerr.Error()
		}
		out = append(out, info)
	}
	return out
}
