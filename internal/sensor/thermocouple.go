package sensor

import (
	"context"
	"sync"

	"reflow_oven/internal/models"
)

// Channel is one temperature probe.
type Channel interface {
	Read(ctx context.Context) models.SensorReading
}

// Thermocouple is a probe behind a MAX31855 converter on a shared bus.
type Thermocouple struct {
	bus      *Bus
	position int

	mu      sync.RWMutex
	enabled bool
	offset  float64
	last    models.SensorReading
	lastErr error
}

var _ Channel = (*Thermocouple)(nil)

func NewThermocouple(bus *Bus, position int, enabled bool, offset float64) *Thermocouple {
	return &Thermocouple{
		bus:      bus,
		position: position,
		enabled:  enabled,
		offset:   offset,
		last:     models.SensorReading{Status: models.SensorMissing},
	}
}

// Read polls the converter once. A transfer that fails or cannot get the
// bus in time is reported as SensorMissing.
func (t *Thermocouple) Read(ctx context.Context) models.SensorReading {
	t.mu.RLock()
	enabled, offset := t.enabled, t.offset
	t.mu.RUnlock()

	var (
		r   models.SensorReading
		err error
	)
	if !enabled {
		// Switched-off channels stay off the bus.
		r = models.SensorReading{Status: models.SensorDisabled}
	} else if frame, terr := t.bus.Transfer(ctx, t.position); terr != nil {
		r, err = models.SensorReading{Status: models.SensorMissing}, terr
	} else {
		r = DecodeFrame(frame, true, offset)
	}

	t.mu.Lock()
	t.last, t.lastErr = r, err
	t.mu.Unlock()
	return r
}

// Last returns the most recent reading and the transfer error behind it, if any.
func (t *Thermocouple) Last() (models.SensorReading, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.lastErr
}

func (t *Thermocouple) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func (t *Thermocouple) SetEnabled(on bool) {
	t.mu.Lock()
	t.enabled = on
	t.mu.Unlock()
}

// Toggle flips the enable flag and returns the new value.
func (t *Thermocouple) Toggle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = !t.enabled
	return t.enabled
}

func (t *Thermocouple) Offset() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.offset
}

func (t *Thermocouple) SetOffset(off float64) {
	t.mu.Lock()
	t.offset = off
	t.mu.Unlock()
}
