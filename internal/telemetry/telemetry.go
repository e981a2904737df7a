// Package telemetry forwards the per-tick oven status to log and
// message-bus sinks.
package telemetry

import (
	"context"
	"errors"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
)

// StatusTitle names the columns of StatusLine.
const StatusTitle = "state,time,target,actual,heater,fan,t1,t2,t3,t4"

// Sink receives one status per tick.
type Sink interface {
	Publish(ctx context.Context, st models.OvenStatus) error
}

// StatusLine renders st in the plot export format. Temperatures are °C,
// duties are percent and time is in ticks.
func StatusLine(st models.OvenStatus) string {
	dp := plot.NewDataPoint(st.State, st.Heater, st.Fan, st.Setpoint, st.Channels)
	return plot.CSVRow(st.Time, dp)
}

// Multi fans a status out to several sinks. Every sink is tried.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, st models.OvenStatus) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes statuses to the application log at debug level.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(_ context.Context, st models.OvenStatus) error {
	s.log.Debugw("oven_status",
		"session", st.Session,
		"line", StatusLine(st),
	)
	return nil
}
