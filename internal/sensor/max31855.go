package sensor

import (
	"math"

	"reflow_oven/internal/models"
)

// MAX31855 frame layout (32 bits, MSB first):
//
//	31..18  probe temperature, signed, 0.25 °C
//	16      fault
//	15..4   cold junction temperature, signed, 0.0625 °C
//	2..0    SCV | SCG | OC
const (
	faultOpen        = 0x1
	faultShortGround = 0x2
	faultShortSupply = 0x4
	faultMask        = 0x7
	faultFlag        = 1 << 16

	// A converter that is not fitted leaves the bus floating high.
	frameNoDevice = 0xFFFFFFFF
)

// DecodeFrame turns a raw converter frame into a reading.
// offset is a calibration correction added to the probe temperature.
// Only an enabled, fault-free reading carries a temperature.
func DecodeFrame(frame uint32, enabled bool, offset float64) models.SensorReading {
	probe := float64(int16(frame>>16)>>2) / 4
	cold := float64(int16(frame&0xFFFF)>>4) / 16

	r := models.SensorReading{
		Temperature:  probe + offset,
		ColdJunction: cold,
		Status:       models.SensorEnabled,
	}
	fault := frame & faultMask
	switch {
	case fault == faultMask:
		return models.SensorReading{Status: models.SensorMissing}
	case fault&faultOpen != 0:
		r.Status = models.SensorOpen
	case fault&faultShortGround != 0:
		r.Status = models.SensorShortToGround
	case fault&faultShortSupply != 0:
		r.Status = models.SensorShortToSupply
	case !enabled:
		r.Status = models.SensorDisabled
	}
	if r.Status != models.SensorEnabled {
		r.Temperature = 0
	}
	return r
}

// EncodeFrame builds the frame a converter would return for the given
// temperatures and fault. It is used by the simulated oven board.
func EncodeFrame(probe, cold float64, status models.SensorStatus) uint32 {
	if status == models.SensorMissing {
		return frameNoDevice
	}
	p := uint32(uint16(int16(math.Round(probe*4))<<2)) << 16
	c := uint32(uint16(int16(math.Round(cold*16)) << 4))
	frame := p | c
	switch status {
	case models.SensorOpen:
		frame |= faultFlag | faultOpen
	case models.SensorShortToGround:
		frame |= faultFlag | faultShortGround
	case models.SensorShortToSupply:
		frame |= faultFlag | faultShortSupply
	}
	return frame
}
