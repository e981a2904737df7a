package models

import "time"

// OvenStatus is the snapshot published once per tick for the API and telemetry.
type OvenStatus struct {
	Session   string                          `json:"session"` // idle | run | manual | monitor
	State     RunState                        `json:"state"`
	Time      int                             `json:"time_s"`
	ProfileID int                             `json:"profile_id"`
	Setpoint  float64                         `json:"setpoint_c"`
	Ambient   float64                         `json:"ambient_c"`
	Actual    float64                         `json:"actual_c"`
	ActualOK  bool                            `json:"actual_ok"`
	Heater    int                             `json:"heater_pct"`
	Fan       int                             `json:"fan_pct"`
	Channels  [NumThermocouples]SensorReading `json:"channels"`
	Active    uint8                           `json:"active_mask"`
	HeaterOnS int                             `json:"heater_on_s,omitempty"`
	AwaitAck  bool                            `json:"await_ack"`
	UpdatedAt time.Time                       `json:"updated_at"`
}

// RunRecord describes one stored profile run.
type RunRecord struct {
	ID          string    `json:"id"`
	ProfileID   int       `json:"profile_id"`
	ProfileName string    `json:"profile_name"`
	Ambient     float64   `json:"ambient_c"`
	Outcome     RunState  `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	Points      int       `json:"points"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
