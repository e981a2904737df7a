package service

import (
	"context"
	"fmt"
	"time"

	"reflow_oven/internal/actuator"
	"reflow_oven/internal/metrics"
	"reflow_oven/internal/models"
)

// ManualCommand is an operator action in manual mode.
type ManualCommand string

const (
	// ManualHeater switches closed-loop heating on or off.
	ManualHeater ManualCommand = "heater"
	// ManualFan switches the fan on or off while not heating.
	ManualFan ManualCommand = "fan"
	// ManualUp raises the setpoint while heating, the fan speed otherwise.
	ManualUp ManualCommand = "up"
	// ManualDown lowers the setpoint while heating, the fan speed otherwise.
	ManualDown ManualCommand = "down"
	ManualExit ManualCommand = "exit"
)

const (
	setpointStep = 5.0
	maxSetpoint  = 255.0
	fanStep      = 1
)

type manualState struct {
	heating  bool
	fanOn    bool
	fanSpeed int
	setpoint float64
	ticks    int
}

func (m *manualState) fanDuty() int {
	if !m.fanOn {
		return 0
	}
	return m.fanSpeed
}

// ManualMode lets the operator drive the heater and fan directly until
// ManualExit is sent or ctx ends. Heating is cut after MaxHeaterTime of
// continuous heater-on time; the session itself stays open.
func (s *OvenService) ManualMode(ctx context.Context) error {
	sess, err := s.beginManual(ctx)
	if err != nil {
		return err
	}
	s.awaitManual(sess)
	return nil
}

// StartManual enters manual mode in the background.
func (s *OvenService) StartManual() error {
	sess, err := s.beginManual(s.root)
	if err != nil {
		return err
	}
	go s.awaitManual(sess)
	return nil
}

func (s *OvenService) beginManual(parent context.Context) (*session, error) {
	sess, err := s.acquire(parent, SessionManual)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.manual = &manualState{
		fanSpeed: s.settings.ManualFanSpeed,
		setpoint: s.settings.ManualSetpoint,
	}
	s.status.Session = SessionManual
	s.status.State = models.StateOff
	s.status.Time = 0
	s.status.ProfileID = 0
	s.status.Setpoint = s.manual.setpoint
	s.status.AwaitAck = false
	st := s.status
	s.mu.Unlock()

	if err := s.ticks.Start(sess.ctx, s.manualTick); err != nil {
		s.mu.Lock()
		s.manual = nil
		s.mu.Unlock()
		s.release(sess)
		return nil, err
	}
	s.log.Infow("manual_started")
	s.event(models.EventManualStart, "manual mode entered", nil)
	s.publish(st)
	return sess, nil
}

func (s *OvenService) awaitManual(sess *session) {
	<-sess.ctx.Done()
	s.ticks.Stop()

	s.pid.SetSetpoint(0)
	s.pid.Enable(false)
	if err := actuator.Shutdown(s.out, 0); err != nil {
		s.log.Errorw("shutdown_failed", "error", err)
	}

	s.mu.Lock()
	s.manual = nil
	s.status.State = models.StateOff
	s.status.Setpoint = 0
	s.status.HeaterOnS = 0
	s.status.Heater = s.out.HeaterDutycycle()
	s.status.Fan = s.out.FanDutycycle()
	s.status.UpdatedAt = time.Now().UTC()
	s.status.Session = SessionIdle
	st := s.status
	s.mu.Unlock()

	s.log.Infow("manual_exited")
	s.event(models.EventManualExit, "manual mode left", nil)
	s.publish(st)
	s.release(sess)
}

// Manual applies one operator command to the manual session.
func (s *OvenService) Manual(cmd ManualCommand) error {
	s.mu.Lock()
	sess, ok := s.current(SessionManual)
	if !ok || s.manual == nil {
		s.mu.Unlock()
		return ErrWrongSession
	}
	if cmd == ManualExit {
		s.mu.Unlock()
		sess.cancel()
		return nil
	}

	m := s.manual
	var err error
	switch cmd {
	case ManualHeater:
		if m.heating {
			m.heating = false
			s.pid.Enable(false)
			err = s.out.SetHeaterDutycycle(0)
			if ferr := s.out.SetFanDutycycle(m.fanDuty()); err == nil {
				err = ferr
			}
			s.status.State = models.StateOff
			s.status.HeaterOnS = 0
		} else {
			m.heating = true
			s.pid.SetSetpoint(m.setpoint)
			s.pid.Enable(true)
			s.status.State = models.StateManual
		}
	case ManualFan:
		if m.heating {
			err = fmt.Errorf("%w: fan is controlled by the loop while heating", ErrWrongSession)
			break
		}
		m.fanOn = !m.fanOn
		err = s.out.SetFanDutycycle(m.fanDuty())
	case ManualUp, ManualDown:
		sign := 1
		if cmd == ManualDown {
			sign = -1
		}
		if m.heating {
			m.setpoint = clampFloat(m.setpoint+float64(sign)*setpointStep, 0, maxSetpoint)
			s.pid.SetSetpoint(m.setpoint)
		} else {
			m.fanSpeed = actuator.Clamp(m.fanSpeed + sign*fanStep)
			if m.fanOn {
				err = s.out.SetFanDutycycle(m.fanSpeed)
			}
		}
	default:
		err = fmt.Errorf("%w: unknown manual command %q", ErrWrongSession, cmd)
	}

	s.status.Setpoint = m.setpoint
	s.status.Heater = s.out.HeaterDutycycle()
	s.status.Fan = s.out.FanDutycycle()
	st := s.status
	s.mu.Unlock()

	s.log.Debugw("manual_command", "command", string(cmd), "heating", m.heating, "setpoint_c", m.setpoint, "fan_speed", m.fanSpeed)
	s.publish(st)
	return err
}

func (s *OvenService) manualTick(ctx context.Context, now time.Time) {
	fused := s.sensors.Update(context.WithoutCancel(ctx))

	s.mu.Lock()
	m := s.manual
	if m == nil {
		s.mu.Unlock()
		return
	}
	m.ticks++
	cutoff := false
	heaterOn := time.Duration(0)
	if m.heating {
		heaterOn = s.pid.ElapsedTime()
		if heaterOn >= s.settings.MaxHeaterTime {
			cutoff = true
			m.heating = false
			s.pid.Enable(false)
			if err := s.out.SetHeaterDutycycle(0); err != nil {
				s.log.Errorw("heater_off_failed", "error", err)
			}
			if err := s.out.SetFanDutycycle(m.fanDuty()); err != nil {
				s.log.Errorw("fan_set_failed", "error", err)
			}
			s.status.State = models.StateOff
		}
	}
	s.status.Time = m.ticks
	s.status.Setpoint = m.setpoint
	s.status.HeaterOnS = 0
	if m.heating {
		s.status.HeaterOnS = int(heaterOn / time.Second)
	}
	s.observeLocked(&s.status, fused, now)
	faults := s.faultsLocked(fused.Readings)
	st := s.status
	s.mu.Unlock()

	metrics.Ticks.Inc()
	s.publish(st)
	s.reportFaults(faults, fused.Readings)
	if cutoff {
		metrics.SafetyCutoffs.Inc()
		s.log.Warnw("manual_safety_cutoff", "heater_on_s", int(heaterOn/time.Second))
		s.event(models.EventSafetyCutoff, "heater switched off after maximum heater time", map[string]any{
			"heater_on_s": int(heaterOn / time.Second),
		})
	}
}

func clampFloat(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
