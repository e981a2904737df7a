package models

import "fmt"

// NumThermocouples is the number of probe channels wired to the oven.
const NumThermocouples = 4

// SensorStatus classifies a single thermocouple poll.
type SensorStatus uint8

const (
	SensorEnabled       SensorStatus = iota // probe present and reading
	SensorOpen                              // no probe or open circuit
	SensorShortToSupply                     // probe shorted to Vcc
	SensorShortToGround                     // probe shorted to Gnd
	SensorMissing                           // no response on the bus
	SensorDisabled      SensorStatus = 7    // available but switched off by the operator
)

func (s SensorStatus) String() string {
	switch s {
	case SensorEnabled:
		return "ok"
	case SensorOpen:
		return "open"
	case SensorShortToSupply:
		return "vcc"
	case SensorShortToGround:
		return "gnd"
	case SensorMissing:
		return "missing"
	case SensorDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Usable reports whether a reading with this status may take part in fusion.
func (s SensorStatus) Usable() bool {
	return s == SensorEnabled
}

func (s SensorStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SensorStatus) UnmarshalText(b []byte) error {
	for _, st := range []SensorStatus{
		SensorEnabled, SensorOpen, SensorShortToSupply,
		SensorShortToGround, SensorMissing, SensorDisabled,
	} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown sensor status %q", string(b))
}

// SensorReading is one channel's result for one poll.
// Temperature is only meaningful when Status is SensorEnabled.
type SensorReading struct {
	Temperature  float64      `json:"temperature_c"`
	ColdJunction float64      `json:"cold_junction_c"`
	Status       SensorStatus `json:"status"`
}
