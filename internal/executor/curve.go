package executor

import (
	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
)

// CurvePoint is one tick of the ideal profile.
type CurvePoint struct {
	Time     int             `json:"time_s"`
	State    models.RunState `json:"state"`
	Setpoint float64         `json:"setpoint_c"`
}

// IdealCurve runs p without feedback, as if the oven tracked the setpoint
// perfectly, from ambient until the sequence completes or MaxTicks pass.
func IdealCurve(p models.Profile, ambient float64) ([]CurvePoint, error) {
	e, err := newIdeal(p)
	if err != nil {
		return nil, err
	}
	e.Start(ambient)

	curve := make([]CurvePoint, 0, 256)
	for e.state.Automatic() {
		s := e.Step(0, true)
		curve = append(curve, CurvePoint{Time: s.Time, State: s.State, Setpoint: s.Setpoint})
	}
	return curve, nil
}

// Preview resets pl and fills its profile curve with the ideal run of p.
func Preview(pl *plot.Plot, p models.Profile, ambient float64) ([]CurvePoint, error) {
	curve, err := IdealCurve(p, ambient)
	if err != nil {
		return nil, err
	}
	pl.Reset()
	for _, c := range curve {
		if err := pl.AddProfilePoint(c.Time, c.Setpoint); err != nil {
			break
		}
	}
	return curve, nil
}
