package models

import "fmt"

// RunState is the step of the oven sequence that is currently active.
type RunState int

const (
	StateOff RunState = iota
	StateFail
	StateInit
	StatePreheat
	StateSoak
	StateRampUp
	StateDwell
	StateRampDown
	StateComplete
	StateManual
)

var runStateNames = [...]string{
	StateOff:      "off",
	StateFail:     "fail",
	StateInit:     "init",
	StatePreheat:  "preheat",
	StateSoak:     "soak",
	StateRampUp:   "ramp_up",
	StateDwell:    "dwell",
	StateRampDown: "ramp_down",
	StateComplete: "complete",
	StateManual:   "manual",
}

func (s RunState) String() string {
	if s < 0 || int(s) >= len(runStateNames) {
		return "invalid"
	}
	return runStateNames[s]
}

// Terminal reports whether the automatic sequence has ended.
func (s RunState) Terminal() bool {
	return s == StateComplete || s == StateFail
}

// Automatic reports whether the state belongs to the profile sequence proper.
func (s RunState) Automatic() bool {
	return s >= StatePreheat && s <= StateRampDown
}

func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RunState) UnmarshalText(b []byte) error {
	for i, name := range runStateNames {
		if name == string(b) {
			*s = RunState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown run state %q", string(b))
}
