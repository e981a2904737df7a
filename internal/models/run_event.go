package models

import "time"

// Event types written to the oven event log.
const (
	EventRunStart     = "RUN_START"
	EventRunComplete  = "RUN_COMPLETE"
	EventRunFail      = "RUN_FAIL"
	EventRunAbort     = "RUN_ABORT"
	EventSensorFault  = "SENSOR_FAULT"
	EventSafetyCutoff = "SAFETY_CUTOFF"
	EventManualStart  = "MANUAL_START"
	EventManualExit   = "MANUAL_EXIT"
	EventMonitorStart = "MONITOR_START"
	EventMonitorExit  = "MONITOR_EXIT"
)

// OvenEvent is a single log entry.
type OvenEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
