package sensor

import (
	"context"
	"fmt"
	"sync"

	"reflow_oven/internal/models"
)

// Fused is the combined oven temperature for one tick.
type Fused struct {
	// Temperature is the mean of the contributing channels. It is only
	// meaningful when Valid is true.
	Temperature float64
	Valid       bool
	// Active has bit n set when channel n contributed.
	Active   uint8
	Readings [models.NumThermocouples]models.SensorReading
}

// Contributors returns the number of channels that took part in the mean.
func (f Fused) Contributors() int {
	n := 0
	for a := f.Active; a != 0; a &= a - 1 {
		n++
	}
	return n
}

// Fuse averages the enabled readings. Channels past NumThermocouples are ignored.
// Unused slots are reported as SensorMissing.
func Fuse(readings []models.SensorReading) Fused {
	var f Fused
	for i := range f.Readings {
		f.Readings[i] = models.SensorReading{Status: models.SensorMissing}
	}

	sum, n := 0.0, 0
	for i, r := range readings {
		if i >= models.NumThermocouples {
			break
		}
		if r.Status != models.SensorEnabled {
			r.Temperature = 0
		}
		f.Readings[i] = r
		if r.Status.Usable() {
			sum += r.Temperature
			n++
			f.Active |= 1 << i
		}
	}
	if n > 0 {
		f.Temperature = sum / float64(n)
		f.Valid = true
	}
	return f
}

// Array is the set of probes fitted to the oven.
type Array struct {
	channels []*Thermocouple

	mu   sync.RWMutex
	last Fused
}

func NewArray(channels ...*Thermocouple) (*Array, error) {
	if len(channels) > models.NumThermocouples {
		return nil, fmt.Errorf("sensor: %d channels configured, at most %d supported", len(channels), models.NumThermocouples)
	}
	a := &Array{channels: channels}
	a.last = Fuse(nil)
	return a, nil
}

// Update polls every channel once and caches the fused result.
func (a *Array) Update(ctx context.Context) Fused {
	readings := make([]models.SensorReading, len(a.channels))
	for i, ch := range a.channels {
		readings[i] = ch.Read(ctx)
	}
	f := Fuse(readings)

	a.mu.Lock()
	a.last = f
	a.mu.Unlock()
	return f
}

// Last returns the result of the latest Update without touching the bus.
func (a *Array) Last() Fused {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

func (a *Array) Len() int {
	return len(a.channels)
}

func (a *Array) Channel(i int) (*Thermocouple, error) {
	if i < 0 || i >= len(a.channels) {
		return nil, fmt.Errorf("%w: %d", ErrNoChannel, i)
	}
	return a.channels[i], nil
}
