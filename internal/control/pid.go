// Package control closes the loop between the oven temperature and the
// heater/fan outputs.
package control

import (
	"context"
	"sync"
	"time"

	"reflow_oven/internal/actuator"
	"reflow_oven/internal/logger"
)

const (
	DefaultInterval = 250 * time.Millisecond
	outputMin       = -100.0
	outputMax       = 100.0
)

// Controller is the view of the PID loop used by the run driver.
type Controller interface {
	SetSetpoint(sp float64)
	Setpoint() float64
	// Input is the process temperature the loop last used.
	Input() (float64, bool)
	Enable(on bool)
	Enabled() bool
	// ElapsedTime is how long the loop has been enabled.
	ElapsedTime() time.Duration
	SetTunings(t Tunings)
}

// Tunings are the PID gains. Ki and Kd are per second.
type Tunings struct {
	Kp float64 `mapstructure:"kp"`
	Ki float64 `mapstructure:"ki"`
	Kd float64 `mapstructure:"kd"`
}

// InputFunc returns the current oven temperature, false when unknown.
type InputFunc func() (float64, bool)

// PID is a positional PID loop whose output in -100..100 is split between
// the heater (positive) and the fan (negative).
type PID struct {
	interval time.Duration
	input    InputFunc
	out      actuator.Outputs
	log      *logger.Logger

	// writeMu is held from the enabled check to the end of the output
	// writes. Enable takes it first, so once Enable(false) returns no
	// sample can still write.
	writeMu sync.Mutex

	mu          sync.Mutex
	tunings     Tunings
	minFanSpeed int
	enabled     bool
	setpoint    float64
	integral    float64
	lastInput   float64
	inputOK     bool
	output      float64
	elapsed     time.Duration
}

var _ Controller = (*PID)(nil)

func NewPID(t Tunings, interval time.Duration, minFanSpeed int, input InputFunc, out actuator.Outputs, log *logger.Logger) *PID {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &PID{
		interval:    interval,
		input:       input,
		out:         out,
		log:         log,
		tunings:     t,
		minFanSpeed: actuator.Clamp(minFanSpeed),
	}
}

// Run updates the loop every interval until ctx is done.
func (p *PID) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Update()
		}
	}
}

// Update performs one sample. It does nothing while disabled. When the
// input is unknown the heater is switched off for that sample.
func (p *PID) Update() {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	p.elapsed += p.interval

	temp, ok := p.input()
	p.inputOK = ok
	if !ok {
		p.output = 0
		minFan := p.minFanSpeed
		p.mu.Unlock()
		if err := actuator.Shutdown(p.out, minFan); err != nil {
			p.log.Errorw("pid_output_failed", "error", err)
		}
		return
	}

	dt := p.interval.Seconds()
	diff := p.setpoint - temp
	p.integral = clamp(p.integral+p.tunings.Ki*diff*dt, outputMin, outputMax)
	// Derivative on measurement avoids a kick when the setpoint steps.
	deriv := (temp - p.lastInput) / dt
	p.lastInput = temp
	p.output = clamp(p.tunings.Kp*diff+p.integral-p.tunings.Kd*deriv, outputMin, outputMax)

	heater, fan := Split(p.output, p.minFanSpeed)
	p.mu.Unlock()

	if err := p.out.SetHeaterDutycycle(heater); err != nil {
		p.log.Errorw("pid_heater_failed", "error", err)
	}
	if err := p.out.SetFanDutycycle(fan); err != nil {
		p.log.Errorw("pid_fan_failed", "error", err)
	}
}

// Split maps a loop output to heater and fan duty cycles. Cooling demand
// drives the fan; when that would leave the fan below minFanSpeed the fan
// runs at minFanSpeed with a little heat to hold temperature.
func Split(output float64, minFanSpeed int) (heater, fan int) {
	if output >= 0 {
		return actuator.Clamp(int(output + 0.5)), minFanSpeed
	}
	fan = actuator.Clamp(int(-output + 0.5))
	if fan < minFanSpeed {
		return 10, minFanSpeed
	}
	return 0, fan
}

func (p *PID) SetSetpoint(sp float64) {
	p.mu.Lock()
	p.setpoint = sp
	p.mu.Unlock()
}

func (p *PID) Setpoint() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setpoint
}

func (p *PID) Input() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastInput, p.inputOK
}

// Enable starts or stops the loop. Starting resets the integral term and
// the elapsed time. Stopping waits for a sample in progress and leaves the
// outputs as they are.
func (p *PID) Enable(on bool) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	if on == p.enabled {
		return
	}
	p.enabled = on
	if on {
		p.integral = 0
		p.output = 0
		p.elapsed = 0
		if temp, ok := p.input(); ok {
			p.lastInput, p.inputOK = temp, true
		}
	}
}

func (p *PID) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *PID) ElapsedTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elapsed
}

func (p *PID) SetTunings(t Tunings) {
	p.mu.Lock()
	p.tunings = t
	p.mu.Unlock()
}

// Output is the last computed loop output in -100..100.
func (p *PID) Output() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
