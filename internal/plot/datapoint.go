package plot

import (
	"encoding/json"
	"math"

	"reflow_oven/internal/models"
)

// Centi is a temperature in hundredths of a degree Celsius.
type Centi int32

func ToCenti(c float64) Centi {
	return Centi(math.Round(c * 100))
}

func (c Centi) Celsius() float64 {
	return float64(c) / 100
}

// Sample is one channel's entry in a DataPoint.
type Sample struct {
	Temperature Centi
	Status      models.SensorStatus
}

// DataPoint is one tick of a run. It is never modified once built.
type DataPoint struct {
	state    models.RunState
	heater   uint8
	fan      uint8
	target   Centi
	channels [models.NumThermocouples]Sample
}

// NewDataPoint records a tick. Duties are clamped to 0..100 and the
// temperature of any channel that is not enabled is stored as 0.
func NewDataPoint(state models.RunState, heater, fan int, target float64, readings [models.NumThermocouples]models.SensorReading) DataPoint {
	dp := DataPoint{
		state:  state,
		heater: percent(heater),
		fan:    percent(fan),
		target: ToCenti(target),
	}
	for i, r := range readings {
		s := Sample{Status: r.Status}
		if r.Status == models.SensorEnabled {
			s.Temperature = ToCenti(r.Temperature)
		}
		dp.channels[i] = s
	}
	return dp
}

func percent(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return uint8(v)
}

func (d DataPoint) State() models.RunState { return d.state }
func (d DataPoint) Heater() int { return int(d.heater) }
func (d DataPoint) Fan() int { return int(d.fan) }
func (d DataPoint) Target() float64 { return d.target.Celsius() }

// Channel returns the temperature and status recorded for channel i.
func (d DataPoint) Channel(i int) (float64, models.SensorStatus) {
	if i < 0 || i >= models.NumThermocouples {
		return 0, models.SensorMissing
	}
	s := d.channels[i]
	return s.Temperature.Celsius(), s.Status
}

// AverageTemperature is the mean of the enabled channels, false when none were.
func (d DataPoint) AverageTemperature() (float64, bool) {
	var sum Centi
	n := 0
	for _, s := range d.channels {
		if s.Status == models.SensorEnabled {
			sum += s.Temperature
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum.Celsius() / float64(n), true
}

// Maximum is the highest of the target and the enabled channel temperatures.
// It is used to scale plots.
func (d DataPoint) Maximum() float64 {
	hi := d.target
	for _, s := range d.channels {
		if s.Status == models.SensorEnabled && s.Temperature > hi {
			hi = s.Temperature
		}
	}
	return hi.Celsius()
}

type dataPointJSON struct {
	State    models.RunState                               `json:"state"`
	Heater   int                                           `json:"heater_pct"`
	Fan      int                                           `json:"fan_pct"`
	Target   float64                                       `json:"target_c"`
	Channels [models.NumThermocouples]models.SensorReading `json:"channels"`
}

func (d DataPoint) MarshalJSON() ([]byte, error) {
	out := dataPointJSON{
		State:  d.state,
		Heater: int(d.heater),
		Fan:    int(d.fan),
		Target: d.target.Celsius(),
	}
	for i, s := range d.channels {
		out.Channels[i] = models.SensorReading{Temperature: s.Temperature.Celsius(), Status: s.Status}
	}
	return json.Marshal(out)
}

func (d *DataPoint) UnmarshalJSON(b []byte) error {
	var in dataPointJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*d = NewDataPoint(in.State, in.Heater, in.Fan, in.Target, in.Channels)
	return nil
}
