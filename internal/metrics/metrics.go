package metrics

import (
	"strconv"

	"reflow_oven/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// Oven metrics
	OvenTemperature = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oven_temperature_celsius",
		Help: "Fused oven temperature",
	})

	OvenSetpoint = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oven_setpoint_celsius",
		Help: "Commanded oven temperature",
	})

	ChannelTemperature = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oven_channel_temperature_celsius",
		Help: "Temperature of each thermocouple channel",
	}, []string{"channel"})

	HeaterDuty = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oven_heater_duty_percent",
		Help: "Heater duty cycle",
	})

	FanDuty = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oven_fan_duty_percent",
		Help: "Fan duty cycle",
	})

	RunState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oven_run_state",
		Help: "Current run state as its enum value",
	})

	ActiveChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oven_active_channels",
		Help: "Number of channels contributing to the oven temperature",
	})

	Ticks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oven_ticks_total",
		Help: "Total number of control ticks processed",
	})

	SensorFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oven_sensor_faults_total",
		Help: "Faulty channel readings by channel and status",
	}, []string{"channel", "status"})

	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oven_runs_total",
		Help: "Finished profile runs by outcome",
	}, []string{"outcome"})

	SafetyCutoffs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oven_safety_cutoffs_total",
		Help: "Heater cut-offs forced by the manual mode time limit",
	})
)

// ObserveStatus records one published oven status.
func ObserveStatus(st models.OvenStatus) {
	if st.ActualOK {
		OvenTemperature.Set(st.Actual)
	}
	OvenSetpoint.Set(st.Setpoint)
	HeaterDuty.Set(float64(st.Heater))
	FanDuty.Set(float64(st.Fan))
	RunState.Set(float64(st.State))

	active := 0
	for i, r := range st.Channels {
		ch := strconv.Itoa(i + 1)
		switch r.Status {
		case models.SensorEnabled:
			active++
			ChannelTemperature.WithLabelValues(ch).Set(r.Temperature)
		case models.SensorDisabled:
		default:
			SensorFaults.WithLabelValues(ch, r.Status.String()).Inc()
		}
	}
	ActiveChannels.Set(float64(active))
}
