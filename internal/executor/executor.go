// Package executor advances a solder profile one tick at a time.
//
// The executor only decides the target temperature and the run state.
// It never touches the heater or fan; the caller forwards the setpoint to
// the controller and records what the outputs did.
package executor

import (
	"fmt"
	"math"

	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
)

const (
	// Delta is the tolerance of the relaxed exit from Preheat, Soak and RampUp.
	Delta = 5.0
	// GraceTicks must pass while waiting before the relaxed exit applies.
	GraceTicks = 5

	PreheatTimeout = 50
	SoakTimeout    = 40
	RampUpTimeout  = 40

	// MaxTicks bounds a run to what the plot can record.
	MaxTicks = plot.MaxProfileTime
)

// Snapshot is the executor state for one tick.
type Snapshot struct {
	State    models.RunState
	Time     int
	Setpoint float64
	Ambient  float64
	// Waiting counts the ticks spent waiting for the oven in the current state.
	Waiting int
	// Reason is set when State is StateFail.
	Reason string
}

// Executor is not safe for concurrent use; the owner serialises access.
type Executor struct {
	profile models.Profile
	ideal   bool

	state    models.RunState
	time     int
	setpoint float64
	ambient  float64
	timeout  int

	startOfSoak  int
	startOfDwell int
	reason       string
}

// New returns an executor for p in state Off.
func New(p models.Profile) (*Executor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Executor{profile: p, state: models.StateOff}, nil
}

func newIdeal(p models.Profile) (*Executor, error) {
	e, err := New(p)
	if err != nil {
		return nil, err
	}
	e.ideal = true
	return e, nil
}

func (e *Executor) Profile() models.Profile { return e.profile }

// Start begins the sequence from the given ambient temperature.
func (e *Executor) Start(ambient float64) {
	e.ambient = ambient
	e.setpoint = ambient
	e.time = 0
	e.reason = ""
	e.enter(models.StatePreheat)
}

// Abort ends an automatic sequence as failed. It is a no-op otherwise.
func (e *Executor) Abort(reason string) {
	if e.state.Automatic() {
		e.fail(reason)
	}
}

// Snapshot describes the executor between ticks. Time is the index the
// next tick will use.
func (e *Executor) Snapshot() Snapshot {
	return Snapshot{
		State:    e.state,
		Time:     e.time,
		Setpoint: e.setpoint,
		Ambient:  e.ambient,
		Waiting:  e.timeout,
		Reason:   e.reason,
	}
}

// Step evaluates one tick against the measured oven temperature. valid is
// false when no channel contributed to the measurement; that fails the run.
// The returned snapshot carries the index of the evaluated tick.
// Outside the automatic states Step changes nothing.
func (e *Executor) Step(measured float64, valid bool) Snapshot {
	if !e.state.Automatic() {
		return e.Snapshot()
	}
	now := e.time
	e.time++

	switch {
	case !e.ideal && !valid:
		e.fail("no usable temperature sensor")
	case now >= MaxTicks:
		if e.state == models.StateRampDown {
			e.enter(models.StateComplete)
		} else {
			e.fail(fmt.Sprintf("run exceeded %d ticks", MaxTicks))
		}
	default:
		e.advance(now, measured)
	}

	s := e.Snapshot()
	s.Time = now
	return s
}

func (e *Executor) advance(now int, measured float64) {
	p := e.profile
	// Without feedback the oven is taken to follow the setpoint exactly.
	reached := func(target float64) bool {
		if e.ideal {
			return e.setpoint >= target
		}
		return measured >= target
	}
	// relaxed counts a waiting tick and reports whether the tolerance band
	// may be used.
	relaxed := func(target float64) bool {
		e.timeout++
		return !e.ideal && e.timeout > GraceTicks && measured >= target-Delta
	}

	switch e.state {
	case models.StatePreheat:
		if e.setpoint < p.SoakTemp1 {
			e.setpoint = math.Min(e.setpoint+p.Ramp1Slope, p.SoakTemp1)
		}
		switch {
		case reached(p.SoakTemp1):
			e.enterSoak(now)
		case e.setpoint < p.SoakTemp1:
		case relaxed(p.SoakTemp1):
			e.enterSoak(now)
		case !e.ideal && e.timeout > PreheatTimeout:
			e.fail("preheat timed out")
		}

	case models.StateSoak:
		elapsed := now - e.startOfSoak
		if e.setpoint < p.SoakTemp2 {
			e.setpoint = math.Max(e.setpoint, soakSetpoint(p, elapsed))
		}
		switch {
		case elapsed < p.SoakTime:
		case reached(p.SoakTemp2):
			e.enter(models.StateRampUp)
		case relaxed(p.SoakTemp2):
			e.enter(models.StateRampUp)
		case !e.ideal && e.timeout > SoakTimeout:
			e.fail("soak timed out")
		}

	case models.StateRampUp:
		if e.setpoint < p.PeakTemp {
			e.setpoint = math.Min(e.setpoint+p.Ramp2Slope, p.PeakTemp)
		}
		target := p.PeakTemp - Delta
		if e.ideal {
			target = p.PeakTemp
		}
		switch {
		case reached(target):
			e.startOfDwell = now
			e.enter(models.StateDwell)
		case e.setpoint < p.PeakTemp:
		default:
			e.timeout++
			if !e.ideal && e.timeout > RampUpTimeout {
				e.fail("ramp to peak timed out")
			}
		}

	case models.StateDwell:
		e.setpoint = p.PeakTemp
		if now-e.startOfDwell > p.PeakDwell {
			e.enter(models.StateRampDown)
		}

	case models.StateRampDown:
		if e.setpoint > e.ambient {
			e.setpoint = math.Max(e.setpoint+p.RampDownSlope, e.ambient)
		}
		if (e.ideal && e.setpoint <= e.ambient) || (!e.ideal && measured < e.ambient) {
			e.enter(models.StateComplete)
		}
	}
}

// soakSetpoint interpolates from SoakTemp1 to SoakTemp2 over SoakTime ticks.
func soakSetpoint(p models.Profile, elapsed int) float64 {
	if elapsed >= p.SoakTime {
		return p.SoakTemp2
	}
	return p.SoakTemp1 + float64(elapsed)*(p.SoakTemp2-p.SoakTemp1)/float64(p.SoakTime)
}

func (e *Executor) enterSoak(now int) {
	e.startOfSoak = now
	e.enter(models.StateSoak)
}

func (e *Executor) enter(s models.RunState) {
	e.state = s
	e.timeout = 0
}

func (e *Executor) fail(reason string) {
	e.reason = reason
	e.enter(models.StateFail)
}
