// Package actuator describes the heater and fan duty-cycle outputs.
package actuator

import (
	"errors"
	"sync"
)

// Outputs drives the heater and the convection fan. Duty cycles are percent.
type Outputs interface {
	SetHeaterDutycycle(pct int) error
	SetFanDutycycle(pct int) error
	HeaterDutycycle() int
	FanDutycycle() int
}

// Clamp limits a duty cycle to 0..100.
func Clamp(pct int) int {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// Shutdown turns the heater off and then sets the fan. The heater is always
// attempted first, even if a previous call failed.
func Shutdown(o Outputs, fan int) error {
	herr := o.SetHeaterDutycycle(0)
	ferr := o.SetFanDutycycle(fan)
	return errors.Join(herr, ferr)
}

// Memory keeps duty cycles in memory. It stands in for real outputs in
// tests and previews.
type Memory struct {
	mu     sync.Mutex
	heater int
	fan    int
	calls  []string
}

var _ Outputs = (*Memory)(nil)

func (m *Memory) SetHeaterDutycycle(pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heater = Clamp(pct)
	m.calls = append(m.calls, "heater")
	return nil
}

func (m *Memory) SetFanDutycycle(pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fan = Clamp(pct)
	m.calls = append(m.calls, "fan")
	return nil
}

func (m *Memory) HeaterDutycycle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heater
}

func (m *Memory) FanDutycycle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fan
}

// Calls lists the outputs written, oldest first.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
